package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID  primitive.ObjectID `bson:"authorId" json:"authorId"`
	Content   string             `bson:"content" json:"content"`
	MediaIDs  []string           `bson:"mediaIds" json:"mediaIds"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// PostPage is one page of the newest-first post listing, cached as a whole.
type PostPage struct {
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalPosts  int64  `json:"totalPosts"`
}

// SearchDocument is the search service's projection of a post.
type SearchDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    string             `bson:"postId" json:"postId"`
	AuthorID  string             `bson:"authorId" json:"authorId"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Score     float64            `bson:"score,omitempty" json:"score,omitempty"`
}
