package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type StoredBlob struct {
	StorageKey string
	URL        string
}

// BlobStore keeps uploaded bytes. Delete of a missing object succeeds.
type BlobStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (StoredBlob, error)
	Delete(ctx context.Context, storageKey string) error
}

type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(url, folder string) (*CloudinaryStore, error) {
	if url == "" {
		return nil, errors.New("cloudinary url is not set")
	}
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, name string, r io.Reader) (StoredBlob, error) {
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     name,
		Folder:       s.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return StoredBlob{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return StoredBlob{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return StoredBlob{StorageKey: res.PublicID, URL: res.SecureURL}, nil
}

// resource types an "auto" upload can land in
var resourceTypes = []string{"image", "video", "raw"}

// Delete destroys the object under whichever resource type holds it.
func (s *CloudinaryStore) Delete(ctx context.Context, storageKey string) error {
	for _, rt := range resourceTypes {
		res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:     storageKey,
			ResourceType: rt,
			Invalidate:   boolPtr(true),
		})
		if err != nil {
			return fmt.Errorf("cloudinary destroy %s: %w", path.Base(storageKey), err)
		}
		if res.Error.Message != "" {
			return fmt.Errorf("cloudinary destroy %s: %s", path.Base(storageKey), res.Error.Message)
		}
		if res.Result == "ok" {
			return nil
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
