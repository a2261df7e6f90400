package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialhub/clock"
	"socialhub/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OutboxStore interface {
	EnqueueEvent(ctx context.Context, event *models.OutboxEvent) error
	PendingEvents(ctx context.Context, limit int64) ([]models.OutboxEvent, error)
	MarkEventSent(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkEventFailed(ctx context.Context, id primitive.ObjectID, reason string) error
}

// Outbox is an Emitter that stages events in the database. Called with a
// transaction context, the event commits or rolls back with the write that
// produced it; Relay delivers it afterwards.
type Outbox struct {
	store OutboxStore
	clock clock.Clock
}

func NewOutbox(store OutboxStore, clk clock.Clock) *Outbox {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Outbox{store: store, clock: clk}
}

func (o *Outbox) Emit(ctx context.Context, event Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}
	return o.store.EnqueueEvent(ctx, &models.OutboxEvent{
		EventID:    uuid.NewString(),
		RoutingKey: event.RoutingKey(),
		Payload:    body,
		Status:     models.OutboxPending,
		CreatedAt:  o.clock.Now(),
	})
}

type RawPublisher interface {
	PublishRaw(ctx context.Context, routingKey string, body []byte, messageID string) error
}

// Relay polls the outbox and publishes pending events oldest first. An event
// is marked sent only after the broker accepted it, so a crash in between
// publishes it again; consumers are idempotent.
type Relay struct {
	store     OutboxStore
	publisher RawPublisher
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int64
}

func NewRelay(store OutboxStore, publisher RawPublisher, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Relay {
	if clk == nil {
		clk = clock.NewReal()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{store: store, publisher: publisher, clock: clk, logger: logger, interval: interval, batchSize: 100}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", "interval", r.interval)
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many events were sent. It stops
// at the first publish failure to keep per-post event order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.store.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	sent := 0
	for _, ev := range pending {
		if err := r.publisher.PublishRaw(ctx, ev.RoutingKey, ev.Payload, ev.EventID); err != nil {
			if markErr := r.store.MarkEventFailed(ctx, ev.ID, err.Error()); markErr != nil {
				r.logger.Error("mark outbox event failed", "event_id", ev.EventID, "error", markErr)
			}
			return sent, fmt.Errorf("publish %s %s: %w", ev.RoutingKey, ev.EventID, err)
		}
		if err := r.store.MarkEventSent(ctx, ev.ID, r.clock.Now()); err != nil {
			return sent, fmt.Errorf("mark %s sent: %w", ev.EventID, err)
		}
		sent++
	}
	return sent, nil
}
