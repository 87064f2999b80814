// Package notify implements the notification sinks. Every leg is
// best-effort: the lifecycle services log emit failures and never roll
// back the primary write.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/repository"
	"cosnap-backend/internal/services"
)

// StoreSink appends the notification row the app's inbox reads.
type StoreSink struct {
	notifications *repository.NotificationRepository
}

// NewStoreSink creates a new store sink
func NewStoreSink(notifications *repository.NotificationRepository) *StoreSink {
	return &StoreSink{notifications: notifications}
}

// Emit writes the notification row.
func (s *StoreSink) Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error {
	n := &models.Notification{
		ID:            uuid.New().String(),
		RecipientID:   recipientID,
		SenderID:      senderID,
		Type:          typ,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		IsRead:        false,
		CreatedAt:     time.Now(),
	}
	return s.notifications.Insert(ctx, n)
}

// MultiSink fans an event out to several sinks. The first leg (the
// store row) is authoritative and its error is returned; the remaining
// legs are fire-and-forget and only log.
type MultiSink struct {
	primary services.NotificationSink
	extras  []services.NotificationSink
}

// NewMultiSink creates a multi sink with a primary and optional extras.
func NewMultiSink(primary services.NotificationSink, extras ...services.NotificationSink) *MultiSink {
	return &MultiSink{primary: primary, extras: extras}
}

// Emit delivers to all sinks.
func (m *MultiSink) Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error {
	err := m.primary.Emit(ctx, recipientID, senderID, typ, referenceID, referenceType)

	for _, extra := range m.extras {
		if exErr := extra.Emit(ctx, recipientID, senderID, typ, referenceID, referenceType); exErr != nil {
			log.Warn().
				Err(exErr).
				Str("recipient_id", recipientID).
				Str("type", string(typ)).
				Msg("Secondary notification sink failed")
		}
	}

	return err
}
