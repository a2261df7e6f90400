package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Emitter is how a service hands lifecycle events off for delivery.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}
	return p.PublishRaw(ctx, event.RoutingKey(), body, uuid.NewString())
}

// PublishRaw sends an already encoded payload. A failed publish is retried
// once on a fresh channel, which also re-dials a dropped connection.
func (p *Publisher) PublishRaw(ctx context.Context, routingKey string, body []byte, messageID string) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		ch, err := p.conn.publishChannel()
		if err != nil {
			lastErr = err
			continue
		}
		err = ch.PublishWithContext(ctx, p.conn.Exchange(), routingKey, false, false, msg)
		if err == nil {
			p.logger.Info("event published", "routing_key", routingKey, "message_id", messageID)
			return nil
		}
		lastErr = err
		p.logger.Warn("publish failed", "routing_key", routingKey, "attempt", attempt, "error", err)
		p.conn.resetPublisher()
	}
	return fmt.Errorf("publish %s: %w", routingKey, lastErr)
}
