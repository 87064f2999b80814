package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"cosnap-backend/internal/middleware"
	"cosnap-backend/internal/models"
	"cosnap-backend/internal/services"
)

const dateLayout = "2006-01-02"

// FlagHandler handles flag-related HTTP requests
type FlagHandler struct {
	flagService    *services.FlagService
	profileService *services.ProfileService
}

// NewFlagHandler creates a new flag handler
func NewFlagHandler(flagService *services.FlagService, profileService *services.ProfileService) *FlagHandler {
	return &FlagHandler{
		flagService:    flagService,
		profileService: profileService,
	}
}

// CreateFlagRequest represents the request body for creating a flag.
// Dates are calendar dates (YYYY-MM-DD).
type CreateFlagRequest struct {
	Type      string   `json:"type"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Note      string   `json:"note"`
	Languages []string `json:"languages"`
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CreateFlag handles POST /api/v1/flags
func (h *FlagHandler) CreateFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	startDate, ok := parseDate(req.StartDate)
	if !ok {
		respondError(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	endDate, ok := parseDate(req.EndDate)
	if !ok {
		respondError(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tier, err := h.profileService.Tier(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve plan tier")
		respondServiceError(w, err)
		return
	}

	flag, err := h.flagService.Create(ctx, userID, tier, services.CreateFlagInput{
		Type:      req.Type,
		City:      req.City,
		Country:   req.Country,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		StartDate: startDate,
		EndDate:   endDate,
		Note:      req.Note,
		Languages: req.Languages,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create flag")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("flag_id", flag.ID).
		Str("city", flag.City).
		Msg("Flag created")

	respondJSON(w, http.StatusCreated, flag)
}

// UpdateFlagRequest represents the request body for updating a flag
type UpdateFlagRequest struct {
	City       *string  `json:"city"`
	Country    *string  `json:"country"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	StartDate  *string  `json:"start_date"`
	EndDate    *string  `json:"end_date"`
	Note       *string  `json:"note"`
	Languages  []string `json:"languages"`
	Visibility *string  `json:"visibility_status"`
}

// UpdateFlag handles PATCH /api/v1/flags/{flag_id}
func (h *FlagHandler) UpdateFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	flagID := chi.URLParam(r, "flag_id")

	var req UpdateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := services.UpdateFlagInput{
		City:      req.City,
		Country:   req.Country,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Note:      req.Note,
		Languages: req.Languages,
	}
	if req.StartDate != nil {
		d, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			respondError(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			respondError(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		in.EndDate = &d
	}
	if req.Visibility != nil {
		v := models.FlagVisibility(*req.Visibility)
		in.Visibility = &v
	}

	tier, err := h.profileService.Tier(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	flag, err := h.flagService.Update(ctx, flagID, userID, tier, in)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("flag_id", flagID).Msg("Failed to update flag")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, flag)
}

// DeleteFlag handles DELETE /api/v1/flags/{flag_id}
func (h *FlagHandler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	flagID := chi.URLParam(r, "flag_id")

	if err := h.flagService.Delete(ctx, flagID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("flag_id", flagID).Msg("Failed to delete flag")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("flag_id", flagID).Msg("Flag deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ListFlags handles GET /api/v1/flags
func (h *FlagHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			limit = parsed
		}
	}

	flags, err := h.flagService.List(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list flags")
		respondServiceError(w, err)
		return
	}
	if flags == nil {
		flags = []models.Flag{}
	}

	respondJSON(w, http.StatusOK, flags)
}
