package database

import (
	"context"

	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MediaStore struct {
	coll *mongo.Collection
}

func NewMediaStore(db *mongo.Database) *MediaStore {
	return &MediaStore{coll: db.Collection(MediaCollection)}
}

func (s *MediaStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *MediaStore) InsertMedia(ctx context.Context, asset *models.MediaAsset) error {
	if asset.ID.IsZero() {
		asset.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, asset)
	return translate(err)
}

func (s *MediaStore) FindMedia(ctx context.Context, id primitive.ObjectID) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&asset); err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (s *MediaStore) DeleteMedia(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MediaStore) ListMediaByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.MediaAsset, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	assets := []models.MediaAsset{}
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}
