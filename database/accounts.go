package database

import (
	"context"

	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AccountStore struct {
	coll *mongo.Collection
}

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection(AccountsCollection)}
}

func (s *AccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (s *AccountStore) InsertAccount(ctx context.Context, account *models.Account) error {
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, account)
	return translate(err)
}

func (s *AccountStore) FindAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *AccountStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *AccountStore) AccountExists(ctx context.Context, username, email string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AccountStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var account models.Account
	if err := s.coll.FindOne(ctx, filter).Decode(&account); err != nil {
		return nil, translate(err)
	}
	return &account, nil
}
