package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"socialhub/database"
	"socialhub/events"
	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaAssets interface {
	FindMedia(ctx context.Context, id primitive.ObjectID) (*models.MediaAsset, error)
	DeleteMedia(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// BlobDeleter removes stored objects. Deleting an object that is already
// gone must succeed.
type BlobDeleter interface {
	Delete(ctx context.Context, storageKey string) error
}

// MediaJanitor removes the media a deleted post referenced.
type MediaJanitor struct {
	assets MediaAssets
	blobs  BlobDeleter
	logger *slog.Logger
}

func NewMediaJanitor(assets MediaAssets, blobs BlobDeleter, logger *slog.Logger) *MediaJanitor {
	return &MediaJanitor{assets: assets, blobs: blobs, logger: logger}
}

// HandlePostDeleted works through every media id even when some fail, then
// reports the failures together so the event is redelivered. Assets already
// cleaned up on an earlier delivery are skipped as missing.
func (j *MediaJanitor) HandlePostDeleted(ctx context.Context, body []byte) error {
	e, err := events.DecodePostDeleted(body)
	if err != nil {
		return err
	}

	var errs []error
	removed := 0
	for _, raw := range e.MediaIDs {
		ok, err := j.removeAsset(ctx, raw, e.AuthorID)
		if err != nil {
			j.logger.Error("media cleanup failed", "post_id", e.PostID, "media_id", raw, "error", err)
			errs = append(errs, fmt.Errorf("media %s: %w", raw, err))
			continue
		}
		if ok {
			removed++
		}
	}
	j.logger.Info("post media cleaned up", "post_id", e.PostID, "removed", removed, "failed", len(errs))
	return errors.Join(errs...)
}

func (j *MediaJanitor) removeAsset(ctx context.Context, rawID, authorID string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		j.logger.Warn("skipping invalid media id", "media_id", rawID)
		return false, nil
	}

	asset, err := j.assets.FindMedia(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find: %w", err)
	}
	if asset.OwnerID.Hex() != authorID {
		j.logger.Warn("media not owned by post author", "media_id", rawID, "owner_id", asset.OwnerID.Hex(), "author_id", authorID)
		return false, nil
	}

	// blob first: if metadata went first a failed blob delete would orphan
	// the object with nothing left pointing at it
	if err := j.blobs.Delete(ctx, asset.StorageKey); err != nil {
		return false, fmt.Errorf("delete blob: %w", err)
	}
	if _, err := j.assets.DeleteMedia(ctx, id); err != nil {
		return false, fmt.Errorf("delete metadata: %w", err)
	}
	return true, nil
}
