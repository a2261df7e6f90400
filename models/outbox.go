package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
)

// OutboxEvent is a lifecycle event staged next to the write that produced it.
type OutboxEvent struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EventID    string             `bson:"eventId"`
	RoutingKey string             `bson:"routingKey"`
	Payload    []byte             `bson:"payload"`
	Status     string             `bson:"status"`
	Attempts   int                `bson:"attempts"`
	LastError  string             `bson:"lastError,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
	SentAt     *time.Time         `bson:"sentAt,omitempty"`
}
