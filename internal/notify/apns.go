package notify

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/repository"
)

var pushAlerts = map[models.NotificationType]string{
	models.NotifyOfferReceived:  "You received a new offer",
	models.NotifyOfferAccepted:  "Your offer was accepted",
	models.NotifyOfferDeclined:  "Your offer was declined",
	models.NotifyOfferCancelled: "An offer was cancelled",
}

// PushSink delivers notifications to the recipient's device via APNs.
// Recipients without a registered push token are skipped silently.
type PushSink struct {
	client   *apns2.Client
	topic    string
	profiles *repository.ProfileRepository
}

// NewPushSink creates an APNs sink from a p12 certificate file.
func NewPushSink(certPath, certPassword, topic string, production bool, profiles *repository.ProfileRepository) (*PushSink, error) {
	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}
	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &PushSink{client: client, topic: topic, profiles: profiles}, nil
}

// Emit pushes the event to the recipient's device, if one is known.
func (s *PushSink) Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error {
	token, err := s.profiles.GetPushToken(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve push token: %w", err)
	}
	if token == nil {
		return nil
	}

	alert, ok := pushAlerts[typ]
	if !ok {
		alert = "You have a new notification"
	}

	p := payload.NewPayload().
		Alert(alert).
		Sound("default").
		Custom("type", string(typ)).
		Custom("reference_id", referenceID).
		Custom("reference_type", referenceType)

	notification := &apns2.Notification{
		DeviceToken: *token,
		Topic:       s.topic,
		Payload:     p,
	}

	res, err := s.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("APNs rejected push: %s", res.Reason)
	}
	return nil
}
