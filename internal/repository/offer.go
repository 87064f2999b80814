package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cosnap-backend/internal/models"
)

// OfferRepository handles database operations for offers
type OfferRepository struct {
	db *pgxpool.Pool
}

// NewOfferRepository creates a new offer repository
func NewOfferRepository(db *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `id, sender_id, receiver_id, flag_id, message, status, sent_at, respond_by, created_at, updated_at`

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	err := row.Scan(
		&o.ID, &o.SenderID, &o.ReceiverID, &o.FlagID, &o.Message,
		&o.Status, &o.SentAt, &o.RespondBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan offer: %w", err)
	}
	return &o, nil
}

// Insert creates a new offer.
func (r *OfferRepository) Insert(ctx context.Context, offer *models.Offer) error {
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		offer.ID, offer.SenderID, offer.ReceiverID, offer.FlagID, offer.Message,
		offer.Status, offer.SentAt, offer.RespondBy, offer.CreatedAt, offer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

// GetForReceiver retrieves an offer scoped to its receiver. A caller
// who is not the receiver gets ErrNotFound, same as a true miss.
func (r *OfferRepository) GetForReceiver(ctx context.Context, id, receiverID string) (*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 AND receiver_id = $2`
	return scanOffer(r.db.QueryRow(ctx, query, id, receiverID))
}

// GetForSender retrieves an offer scoped to its sender.
func (r *OfferRepository) GetForSender(ctx context.Context, id, senderID string) (*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 AND sender_id = $2`
	return scanOffer(r.db.QueryRow(ctx, query, id, senderID))
}

// TransitionIfStatus moves an offer from one status to another only if
// it currently holds the expected status. The condition rides in the
// UPDATE itself, so a concurrent accept and cancel cannot both win.
func (r *OfferRepository) TransitionIfStatus(ctx context.Context, id string, from, to models.OfferStatus) (bool, error) {
	query := `UPDATE offers SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.Exec(ctx, query, id, from, to, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to transition offer status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
