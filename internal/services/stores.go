package services

import (
	"context"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
)

// Store interfaces consumed by the lifecycle services. The pgx
// implementations live in internal/repository; tests use in-memory
// fakes.

// FlagStore persists flags. Insert re-enforces the quota inside a
// transaction (count-then-insert under a lock on the owner's profile
// row), so a racing pair of creates cannot both slip past the service
// level pre-check.
type FlagStore interface {
	CountActive(ctx context.Context, ownerID string) (int, error)
	Insert(ctx context.Context, flag *models.Flag, quota int) error
	GetOwned(ctx context.Context, id, ownerID string) (*models.Flag, error)
	UpdateOwned(ctx context.Context, id, ownerID string, patch models.FlagPatch) (*models.Flag, error)
	DeleteOwned(ctx context.Context, id, ownerID string) error
	ListVisible(ctx context.Context, limit int) ([]models.Flag, error)
}

// OfferStore persists offers. The role-scoped getters bake the
// receiver/sender check into the query so an unauthorized caller is
// indistinguishable from a miss. TransitionIfStatus must condition the
// update on the current status in the same statement.
type OfferStore interface {
	Insert(ctx context.Context, offer *models.Offer) error
	GetForReceiver(ctx context.Context, id, receiverID string) (*models.Offer, error)
	GetForSender(ctx context.Context, id, senderID string) (*models.Offer, error)
	TransitionIfStatus(ctx context.Context, id string, from, to models.OfferStatus) (bool, error)
}

// MatchStore creates matches. InsertIfAbsent relies on the unique
// constraint on offer_id: when a concurrent accept already created the
// match it returns the existing row with created == false.
type MatchStore interface {
	InsertIfAbsent(ctx context.Context, offerID, userAID, userBID, flagID string) (match *models.Match, created bool, err error)
}

// ConversationStore finds or creates the conversation for an unordered
// user pair plus an optional offer/flag context.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, userAID, userBID, offerID, flagID string) (conversationID string, err error)
}

// ProfileStore reads user profiles owned by the surrounding app.
type ProfileStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	GetTier(ctx context.Context, id string) (plan.Tier, error)
}

// NotificationSink appends a notification event for a recipient.
// Strictly best-effort from the lifecycle's point of view: failures are
// logged and never roll back the primary write.
type NotificationSink interface {
	Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error
}
