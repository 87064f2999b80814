package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"cosnap-backend/internal/middleware"
	"cosnap-backend/internal/models"
	"cosnap-backend/internal/services"
)

// OfferHandler handles offer-related HTTP requests
type OfferHandler struct {
	offerService *services.OfferService
}

// NewOfferHandler creates a new offer handler
func NewOfferHandler(offerService *services.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// CreateOfferRequest represents the request body for creating an offer
type CreateOfferRequest struct {
	ReceiverID string     `json:"receiver_id"`
	FlagID     string     `json:"flag_id"`
	Message    string     `json:"message"`
	RespondBy  *time.Time `json:"respond_by"`
}

// CreateOffer handles POST /api/v1/offers
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ReceiverID == "" {
		respondError(w, "receiver_id is required", http.StatusBadRequest)
		return
	}
	if req.FlagID == "" {
		respondError(w, "flag_id is required", http.StatusBadRequest)
		return
	}

	offer, err := h.offerService.Create(ctx, userID, req.ReceiverID, req.FlagID, req.Message, req.RespondBy)
	if err != nil {
		log.Error().
			Err(err).
			Str("sender_id", userID).
			Str("receiver_id", req.ReceiverID).
			Str("flag_id", req.FlagID).
			Msg("Failed to create offer")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("offer_id", offer.ID).
		Str("sender_id", userID).
		Str("receiver_id", req.ReceiverID).
		Msg("Offer created")

	respondJSON(w, http.StatusCreated, offer)
}

// CancelOffer handles POST /api/v1/offers/{offer_id}/cancel
func (h *OfferHandler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	offerID := chi.URLParam(r, "offer_id")

	if err := h.offerService.Cancel(ctx, offerID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("offer_id", offerID).Msg("Failed to cancel offer")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("offer_id", offerID).Msg("Offer cancelled")
	w.WriteHeader(http.StatusNoContent)
}

// DeclineOffer handles POST /api/v1/offers/{offer_id}/decline
func (h *OfferHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	offerID := chi.URLParam(r, "offer_id")

	if err := h.offerService.Decline(ctx, offerID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("offer_id", offerID).Msg("Failed to decline offer")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("offer_id", offerID).Msg("Offer declined")
	w.WriteHeader(http.StatusNoContent)
}

// AcceptOfferResponse returns the match and the conversation the
// participants can continue in. conversation_id may be empty when the
// conversation could not be created; the match still stands.
type AcceptOfferResponse struct {
	Match          *models.Match `json:"match"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// AcceptOffer handles POST /api/v1/offers/{offer_id}/accept
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	offerID := chi.URLParam(r, "offer_id")

	match, conversationID, err := h.offerService.Accept(ctx, offerID, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("offer_id", offerID).Msg("Failed to accept offer")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("offer_id", offerID).
		Str("match_id", match.ID).
		Msg("Offer accepted")

	respondJSON(w, http.StatusOK, AcceptOfferResponse{
		Match:          match,
		ConversationID: conversationID,
	})
}
