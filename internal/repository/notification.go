package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"cosnap-backend/internal/models"
)

// NotificationRepository appends notification rows. Write-only from
// this service's perspective; the app reads them elsewhere.
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert appends a notification event.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, sender_id, type, reference_id, reference_type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		n.ID, n.RecipientID, n.SenderID, n.Type, n.ReferenceID, n.ReferenceType, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}
