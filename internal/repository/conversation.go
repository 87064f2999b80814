package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository finds or creates conversations. Conversations
// are owned by the surrounding app; this service only needs the
// find-or-create at accept time.
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreate returns the conversation for the unordered user pair and
// offer context, creating it if absent. The pair is normalized to
// lexicographic order so {A,B} and {B,A} hit the same row; a concurrent
// create loses on the unique index and falls back to reading the
// winner's row.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, userAID, userBID, offerID, flagID string) (string, error) {
	if userAID > userBID {
		userAID, userBID = userBID, userAID
	}

	id := uuid.New().String()
	query := `
		INSERT INTO conversations (id, user_a_id, user_b_id, offer_id, flag_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, id, userAID, userBID, offerID, flagID, time.Now())
	if err == nil {
		return id, nil
	}
	if !errors.Is(mapUniqueViolation(err), ErrDuplicate) {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	var existing string
	err = r.db.QueryRow(ctx,
		`SELECT id FROM conversations WHERE user_a_id = $1 AND user_b_id = $2 AND offer_id = $3`,
		userAID, userBID, offerID,
	).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("failed to load existing conversation: %w", err)
	}
	return existing, nil
}
