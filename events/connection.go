package events

import (
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns the broker connection. It dials lazily on first use,
// reuses the connection afterwards, and forgets it once the broker closes
// it, so the next caller dials again.
type Connection struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	publish *amqp.Channel
}

func NewConnection(url, exchange string, logger *slog.Logger) *Connection {
	return &Connection{url: url, exchange: exchange, logger: logger}
}

func (c *Connection) Exchange() string { return c.exchange }

// publishChannel returns the shared channel used for publishing.
func (c *Connection) publishChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publish != nil && !c.publish.IsClosed() {
		return c.publish, nil
	}
	ch, err := c.openLocked()
	if err != nil {
		return nil, err
	}
	c.publish = ch
	return ch, nil
}

// openChannel returns a new channel, used for one subscription each.
func (c *Connection) openChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Connection) openLocked() (*amqp.Channel, error) {
	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		c.conn = conn
		c.publish = nil
		go c.watch(conn)
		c.logger.Info("connected to rabbitmq", "exchange", c.exchange)
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	return ch, nil
}

func (c *Connection) watch(conn *amqp.Connection) {
	reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if ok && reason != nil {
		c.logger.Error("rabbitmq connection closed", "error", reason)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.publish = nil
	}
}

// resetPublisher drops the publish channel after a failed publish.
func (c *Connection) resetPublisher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publish != nil {
		_ = c.publish.Close()
		c.publish = nil
	}
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish = nil
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
