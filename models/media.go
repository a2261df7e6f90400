package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaAsset struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	StorageKey   string             `bson:"storageKey" json:"-"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	MimeType     string             `bson:"mimeType" json:"mimeType"`
	Size         int64              `bson:"size" json:"size"`
	URL          string             `bson:"url" json:"url"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
