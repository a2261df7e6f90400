package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. Returning nil acknowledges the
// message; any other error leaves it for redelivery, so handlers must be
// idempotent.
type Handler func(ctx context.Context, body []byte) error

type Subscriber struct {
	conn           *Connection
	logger         *slog.Logger
	handlerTimeout time.Duration
	redeliverDelay time.Duration
	newBackOff     func() backoff.BackOff
}

func NewSubscriber(conn *Connection, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		conn:           conn,
		logger:         logger,
		handlerTimeout: 30 * time.Second,
		redeliverDelay: time.Second,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Subscribe binds an exclusive, server-named queue to routingKey and starts
// a goroutine that feeds it to handler one message at a time until ctx is
// cancelled. Every subscription is an independent consumer group.
func (s *Subscriber) Subscribe(ctx context.Context, routingKey string, handler Handler) error {
	ch, deliveries, err := s.open(routingKey)
	if err != nil {
		return err
	}
	s.logger.Info("subscribed to event", "routing_key", routingKey)

	go s.run(ctx, routingKey, handler, ch, deliveries)
	return nil
}

func (s *Subscriber) open(routingKey string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := s.conn.openChannel()
	if err != nil {
		return nil, nil, err
	}
	fail := func(step string, err error) (*amqp.Channel, <-chan amqp.Delivery, error) {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %s: %w", routingKey, step, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fail("qos", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, s.conn.Exchange(), false, nil); err != nil {
		return fail("bind queue", err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fail("consume", err)
	}
	return ch, deliveries, nil
}

func (s *Subscriber) run(ctx context.Context, routingKey string, handler Handler, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	for {
		s.consume(ctx, routingKey, handler, deliveries)
		_ = ch.Close()
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("subscription lost, resubscribing", "routing_key", routingKey)
		op := func() error {
			var err error
			ch, deliveries, err = s.open(routingKey)
			return err
		}
		notify := func(err error, wait time.Duration) {
			s.logger.Error("resubscribe failed", "routing_key", routingKey, "retry_in", wait, "error", err)
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
			return
		}
		s.logger.Info("resubscribed to event", "routing_key", routingKey)
	}
}

// consume drains deliveries until the channel closes or ctx is done.
func (s *Subscriber) consume(ctx context.Context, routingKey string, handler Handler, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			s.dispatch(ctx, routingKey, handler, d)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, routingKey string, handler Handler, d amqp.Delivery) {
	log := s.logger.With("routing_key", routingKey, "message_id", d.MessageId, "redelivered", d.Redelivered)

	err := s.handle(ctx, handler, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", "error", ackErr)
		}
	case errors.Is(err, ErrMalformed):
		log.Error("dropping malformed event", "error", err)
		if rejErr := d.Reject(false); rejErr != nil {
			log.Error("reject failed", "error", rejErr)
		}
	default:
		log.Error("event handler failed, requeueing", "error", err)
		if s.redeliverDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.redeliverDelay):
			}
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("nack failed", "error", nackErr)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, handler Handler, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	defer cancel()
	return handler(ctx, body)
}
