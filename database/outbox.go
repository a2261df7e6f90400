package database

import (
	"context"
	"time"

	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OutboxStore struct {
	coll *mongo.Collection
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	return &OutboxStore{coll: db.Collection(OutboxCollection)}
}

// EnsureIndexes keeps pending lookups cheap and lets sent rows expire after a day.
func (s *OutboxStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sentAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(24 * 60 * 60)},
	})
	return err
}

func (s *OutboxStore) EnqueueEvent(ctx context.Context, event *models.OutboxEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, event)
	return translate(err)
}

func (s *OutboxStore) PendingEvents(ctx context.Context, limit int64) ([]models.OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).SetLimit(limit)
	cursor, err := s.coll.Find(ctx, bson.M{"status": models.OutboxPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkEventSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": models.OutboxSent, "sentAt": at},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

func (s *OutboxStore) MarkEventFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastError": reason},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
