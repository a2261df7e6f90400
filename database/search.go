package database

import (
	"context"

	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SearchStore struct {
	coll *mongo.Collection
}

func NewSearchStore(db *mongo.Database) *SearchStore {
	return &SearchStore{coll: db.Collection(SearchCollection)}
}

func (s *SearchStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "postId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "content", Value: "text"}}},
	})
	return err
}

// UpsertSearchDocument writes the projection keyed by postId, so replays of
// the same event converge on one document.
func (s *SearchStore) UpsertSearchDocument(ctx context.Context, doc *models.SearchDocument) error {
	update := bson.M{
		"$set": bson.M{
			"authorId":  doc.AuthorID,
			"content":   doc.Content,
			"createdAt": doc.CreatedAt,
		},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"postId": doc.PostID}, update, options.Update().SetUpsert(true))
	return translate(err)
}

func (s *SearchStore) DeleteSearchDocument(ctx context.Context, postID string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"postId": postID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *SearchStore) SearchPosts(ctx context.Context, query string, limit int64) ([]models.SearchDocument, error) {
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []models.SearchDocument{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
