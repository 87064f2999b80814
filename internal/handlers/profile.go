package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"cosnap-backend/internal/middleware"
	"cosnap-backend/internal/services"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// CreateProfile handles POST /api/v1/profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create profile")
		respondError(w, "failed to create profile", http.StatusInternalServerError)
		return
	}

	log.Info().Str("profile_id", profile.ID).Msg("Profile created")
	respondJSON(w, http.StatusCreated, profile)
}

// RegisterPushTokenRequest represents the push token registration body
type RegisterPushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// RegisterPushToken handles PUT /api/v1/profiles/push-token
func (h *ProfileHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.profileService.RegisterPushToken(ctx, userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register push token")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
