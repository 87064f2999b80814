package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cosnap-backend/internal/models"
)

const feedQueue = "notification.events"

// FeedEvent is the JSON payload published to the external pub/sub feed
// that drives realtime delivery. This service only writes the feed; the
// transport itself belongs to the broker.
type FeedEvent struct {
	RecipientID   string    `json:"recipient_id"`
	SenderID      string    `json:"sender_id"`
	Type          string    `json:"type"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	EmittedAt     time.Time `json:"emitted_at"`
}

// FeedSink publishes notification events to RabbitMQ.
type FeedSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewFeedSink dials the broker and declares the durable feed queue.
func NewFeedSink(url string) (*FeedSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		feedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare feed queue: %w", err)
	}
	return &FeedSink{conn: conn, channel: ch}, nil
}

// Emit publishes the event as a persistent JSON message.
func (s *FeedSink) Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error {
	body, err := json.Marshal(FeedEvent{
		RecipientID:   recipientID,
		SenderID:      senderID,
		Type:          string(typ),
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		EmittedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"",        // default exchange
		feedQueue, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish feed event: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (s *FeedSink) Close() {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
