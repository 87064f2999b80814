package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/repository"
)

// OfferService drives the offer state machine: create, cancel, decline
// and accept, with match and conversation side effects on accept.
type OfferService struct {
	offers        OfferStore
	matches       MatchStore
	conversations ConversationStore
	profiles      ProfileStore
	notifier      NotificationSink
	now           func() time.Time
}

// NewOfferService creates a new offer service.
func NewOfferService(offers OfferStore, matches MatchStore, conversations ConversationStore, profiles ProfileStore, notifier NotificationSink) *OfferService {
	return &OfferService{
		offers:        offers,
		matches:       matches,
		conversations: conversations,
		profiles:      profiles,
		notifier:      notifier,
		now:           time.Now,
	}
}

// emit fires a notification and only logs on failure. Notification
// delivery is never transactional with the primary write.
func (s *OfferService) emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, refID, refType string) {
	if err := s.notifier.Emit(ctx, recipientID, senderID, typ, refID, refType); err != nil {
		log.Error().
			Err(err).
			Str("recipient_id", recipientID).
			Str("type", string(typ)).
			Str("reference_id", refID).
			Msg("Failed to emit notification")
	}
}

// Create inserts a pending offer from sender to receiver on a flag and
// notifies the receiver.
func (s *OfferService) Create(ctx context.Context, senderID, receiverID, flagID, message string, respondBy *time.Time) (*models.Offer, error) {
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot send an offer to yourself", ErrValidation)
	}
	if flagID == "" {
		return nil, fmt.Errorf("%w: flag id is required", ErrValidation)
	}

	ok, err := s.profiles.Exists(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("%w: checking sender profile: %v", ErrDependency, err)
	}
	if !ok {
		return nil, ErrSenderProfileMissing
	}
	ok, err = s.profiles.Exists(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: checking receiver profile: %v", ErrDependency, err)
	}
	if !ok {
		return nil, ErrReceiverProfileMissing
	}

	now := s.now()
	offer := &models.Offer{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		FlagID:     flagID,
		Message:    message,
		Status:     models.OfferPending,
		SentAt:     now,
		RespondBy:  respondBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.offers.Insert(ctx, offer); err != nil {
		return nil, fmt.Errorf("%w: inserting offer: %v", ErrDependency, err)
	}

	s.emit(ctx, receiverID, senderID, models.NotifyOfferReceived, offer.ID, "offer")

	return offer, nil
}

// expireIfOverdue lazily expires a pending offer whose respond-by
// deadline has passed. Returns true if the offer is (now) expired.
func (s *OfferService) expireIfOverdue(ctx context.Context, offer *models.Offer) bool {
	if offer.Status != models.OfferPending || offer.RespondBy == nil {
		return false
	}
	if !s.now().After(*offer.RespondBy) {
		return false
	}
	if _, err := s.offers.TransitionIfStatus(ctx, offer.ID, models.OfferPending, models.OfferExpired); err != nil {
		log.Error().Err(err).Str("offer_id", offer.ID).Msg("Failed to expire overdue offer")
	}
	return true
}

// Cancel moves a pending offer to cancelled. Only the sender may
// cancel; anyone else sees not-found.
func (s *OfferService) Cancel(ctx context.Context, offerID, senderID string) error {
	offer, err := s.offers.GetForSender(ctx, offerID, senderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: loading offer: %v", ErrDependency, err)
	}

	if s.expireIfOverdue(ctx, offer) {
		return ErrInvalidTransition
	}

	ok, err := s.offers.TransitionIfStatus(ctx, offerID, models.OfferPending, models.OfferCancelled)
	if err != nil {
		return fmt.Errorf("%w: cancelling offer: %v", ErrDependency, err)
	}
	if !ok {
		return ErrInvalidTransition
	}

	s.emit(ctx, offer.ReceiverID, senderID, models.NotifyOfferCancelled, offerID, "offer")
	return nil
}

// Decline moves a pending offer to declined. Only the receiver may
// decline; the original sender is notified.
func (s *OfferService) Decline(ctx context.Context, offerID, receiverID string) error {
	offer, err := s.offers.GetForReceiver(ctx, offerID, receiverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: loading offer: %v", ErrDependency, err)
	}

	if s.expireIfOverdue(ctx, offer) {
		return ErrInvalidTransition
	}

	ok, err := s.offers.TransitionIfStatus(ctx, offerID, models.OfferPending, models.OfferDeclined)
	if err != nil {
		return fmt.Errorf("%w: declining offer: %v", ErrDependency, err)
	}
	if !ok {
		return ErrInvalidTransition
	}

	s.emit(ctx, offer.SenderID, receiverID, models.NotifyOfferDeclined, offerID, "offer")
	return nil
}

// Accept moves a pending offer to accepted, creates exactly one match,
// finds or creates the conversation for the pair and notifies the
// sender. A concurrent double-accept is resolved by the unique
// constraint on the match's offer id: the loser returns the existing
// match as a success, not an error. Conversation failure is logged but
// does not fail the accept; the users can always message through
// another path.
func (s *OfferService) Accept(ctx context.Context, offerID, receiverID string) (*models.Match, string, error) {
	offer, err := s.offers.GetForReceiver(ctx, offerID, receiverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: loading offer: %v", ErrDependency, err)
	}

	if s.expireIfOverdue(ctx, offer) {
		return nil, "", ErrInvalidTransition
	}

	ok, err := s.offers.TransitionIfStatus(ctx, offerID, models.OfferPending, models.OfferAccepted)
	if err != nil {
		return nil, "", fmt.Errorf("%w: accepting offer: %v", ErrDependency, err)
	}
	if !ok {
		// Lost the transition race or the offer is terminal. If it lost
		// to another accept, fall through and return the existing match
		// idempotently; any other terminal state is a real rejection.
		offer, err = s.offers.GetForReceiver(ctx, offerID, receiverID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, "", ErrNotFound
			}
			return nil, "", fmt.Errorf("%w: reloading offer: %v", ErrDependency, err)
		}
		if offer.Status != models.OfferAccepted {
			return nil, "", ErrInvalidTransition
		}
	}

	match, created, err := s.matches.InsertIfAbsent(ctx, offer.ID, offer.SenderID, offer.ReceiverID, offer.FlagID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: creating match: %v", ErrDependency, err)
	}

	conversationID, err := s.conversations.FindOrCreate(ctx, offer.SenderID, offer.ReceiverID, offer.ID, offer.FlagID)
	if err != nil {
		log.Error().
			Err(err).
			Str("offer_id", offer.ID).
			Msg("Failed to find or create conversation")
		conversationID = ""
	}

	if created {
		s.emit(ctx, offer.SenderID, receiverID, models.NotifyOfferAccepted, offer.ID, "offer")
	}

	return match, conversationID, nil
}
