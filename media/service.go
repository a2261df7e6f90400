// Package media stores uploaded files in a blob store and keeps their
// metadata in MongoDB.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"time"

	"socialhub/apperr"
	"socialhub/clock"
	"socialhub/models"

	"github.com/gabriel-vasile/mimetype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sniffBytes is how much of a body is read to detect its type.
const sniffBytes = 3072

type Store interface {
	InsertMedia(ctx context.Context, asset *models.MediaAsset) error
	DeleteMedia(ctx context.Context, id primitive.ObjectID) (bool, error)
	ListMediaByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.MediaAsset, error)
}

type Upload struct {
	OwnerID  string
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

type Service struct {
	store    Store
	blobs    BlobStore
	maxBytes int64
	clock    clock.Clock
	logger   *slog.Logger
}

func NewService(store Store, blobs BlobStore, maxBytes int64, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Service{store: store, blobs: blobs, maxBytes: maxBytes, clock: clk, logger: logger}
}

func (s *Service) Upload(ctx context.Context, in Upload) (*models.MediaAsset, error) {
	owner, err := primitive.ObjectIDFromHex(in.OwnerID)
	if err != nil {
		return nil, apperr.Auth("Invalid user id")
	}
	if in.Size <= 0 {
		return nil, apperr.Validation("File is empty")
	}
	if in.Size > s.maxBytes {
		return nil, apperr.Validation(fmt.Sprintf("File exceeds the %d byte limit", s.maxBytes))
	}
	mimeType, body, err := contentType(in.MimeType, in.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	asset := &models.MediaAsset{
		ID:           primitive.NewObjectID(),
		OwnerID:      owner,
		OriginalName: in.Filename,
		MimeType:     mimeType,
		Size:         in.Size,
		CreatedAt:    s.clock.Now().Truncate(time.Millisecond),
	}

	blob, err := s.blobs.Upload(ctx, asset.ID.Hex(), io.LimitReader(body, s.maxBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Failed to store file", err)
	}
	asset.StorageKey = blob.StorageKey
	asset.URL = blob.URL

	if err := s.store.InsertMedia(ctx, asset); err != nil {
		// the blob has no metadata pointing at it
		if derr := s.blobs.Delete(ctx, blob.StorageKey); derr != nil {
			s.logger.Error("orphaned blob", "storage_key", blob.StorageKey, "error", derr)
		}
		return nil, fmt.Errorf("insert media: %w", err)
	}
	s.logger.Info("media uploaded", "media_id", asset.ID.Hex(), "owner_id", in.OwnerID, "size", in.Size)
	return asset, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.MediaAsset, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, apperr.Auth("Invalid user id")
	}
	assets, err := s.store.ListMediaByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return assets, nil
}

// contentType keeps a declared media type and sniffs the body when the
// client sent none, an unparseable one, or application/octet-stream. Any
// type is accepted; the blob store decides how to serve it.
func contentType(declared string, body io.Reader) (string, io.Reader, error) {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt, body, nil
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	mt, _, err := mime.ParseMediaType(mimetype.Detect(head).String())
	if err != nil {
		mt = "application/octet-stream"
	}
	return mt, io.MultiReader(bytes.NewReader(head), body), nil
}
