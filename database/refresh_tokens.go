package database

import (
	"context"

	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RefreshTokenStore struct {
	coll *mongo.Collection
}

func NewRefreshTokenStore(db *mongo.Database) *RefreshTokenStore {
	return &RefreshTokenStore{coll: db.Collection(RefreshTokensCollection)}
}

// EnsureIndexes adds the lookup index and a TTL index so expired rows are
// eventually purged by the server even if nobody redeems them.
func (s *RefreshTokenStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "accountId", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return err
}

func (s *RefreshTokenStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, token)
	return translate(err)
}

// ConsumeRefreshToken deletes the row and returns it in one server-side
// operation, so two concurrent redemptions cannot both succeed.
func (s *RefreshTokenStore) ConsumeRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.coll.FindOneAndDelete(ctx, bson.M{"tokenHash": tokenHash}).Decode(&token)
	if err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (s *RefreshTokenStore) DeleteRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"tokenHash": tokenHash})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
