package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cosnap-backend/internal/models"
)

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// InsertIfAbsent creates the match for an offer, or returns the
// existing one when a concurrent accept got there first. The unique
// constraint on offer_id is the authoritative guard; ON CONFLICT DO
// NOTHING turns the race into an idempotent read.
func (r *MatchRepository) InsertIfAbsent(ctx context.Context, offerID, userAID, userBID, flagID string) (*models.Match, bool, error) {
	now := time.Now()
	match := &models.Match{
		ID:        uuid.New().String(),
		OfferID:   offerID,
		UserAID:   userAID,
		UserBID:   userBID,
		FlagID:    flagID,
		Status:    models.MatchScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := r.db.Exec(ctx, `
		INSERT INTO matches (id, offer_id, user_a_id, user_b_id, flag_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (offer_id) DO NOTHING
	`, match.ID, match.OfferID, match.UserAID, match.UserBID, match.FlagID, match.Status, match.CreatedAt, match.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert match: %w", err)
	}
	if result.RowsAffected() > 0 {
		return match, true, nil
	}

	existing, err := r.getByOfferID(ctx, offerID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MatchRepository) getByOfferID(ctx context.Context, offerID string) (*models.Match, error) {
	query := `
		SELECT id, offer_id, user_a_id, user_b_id, flag_id, status, created_at, updated_at
		FROM matches
		WHERE offer_id = $1
	`
	var m models.Match
	err := r.db.QueryRow(ctx, query, offerID).Scan(
		&m.ID, &m.OfferID, &m.UserAID, &m.UserBID, &m.FlagID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get match by offer id: %w", err)
	}
	return &m, nil
}
