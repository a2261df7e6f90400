package consumers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialhub/events"
	"socialhub/logging"
	"socialhub/memstore"
	"socialhub/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func encode(t *testing.T, e events.Event) []byte {
	t.Helper()
	body, err := events.Encode(e)
	require.NoError(t, err)
	return body
}

func TestIndexerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := memstore.NewSearch()
	results := &countingResults{}
	indexer := NewSearchIndexer(index, results, logging.Discard())

	created := events.PostCreated{
		PostID:    primitive.NewObjectID().Hex(),
		AuthorID:  primitive.NewObjectID().Hex(),
		Content:   "golang gophers everywhere",
		CreatedAt: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC),
	}
	body := encode(t, created)

	require.NoError(t, indexer.HandlePostCreated(ctx, body))
	require.NoError(t, indexer.HandlePostCreated(ctx, body))
	assert.Equal(t, 1, index.Count(created.PostID))
	assert.Equal(t, 1, index.Len())

	hits, err := index.SearchPosts(ctx, "gophers", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, created.PostID, hits[0].PostID)

	deleted := encode(t, events.PostDeleted{PostID: created.PostID, AuthorID: created.AuthorID})
	require.NoError(t, indexer.HandlePostDeleted(ctx, deleted))
	require.NoError(t, indexer.HandlePostDeleted(ctx, deleted), "deleting an absent document is a no-op")
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, 3, results.n, "the no-op delete leaves cached results alone")
}

type countingResults struct{ n int }

func (c *countingResults) Invalidate(context.Context) error {
	c.n++
	return nil
}

func TestIndexerRejectsMalformed(t *testing.T) {
	indexer := NewSearchIndexer(memstore.NewSearch(), nil, logging.Discard())

	err := indexer.HandlePostCreated(context.Background(), []byte(`{"postId":"x"}`))
	assert.ErrorIs(t, err, events.ErrMalformed)
	err = indexer.HandlePostDeleted(context.Background(), []byte(`nope`))
	assert.ErrorIs(t, err, events.ErrMalformed)
}

type fakeBlobs struct {
	mu      sync.Mutex
	deleted []string
	failFor map[string]int
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[key] > 0 {
		f.failFor[key]--
		return errors.New("storage timeout")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func seedAsset(t *testing.T, store *memstore.Media, owner primitive.ObjectID) models.MediaAsset {
	t.Helper()
	asset := models.MediaAsset{
		OwnerID:      owner,
		StorageKey:   "socialhub/" + gofakeit.UUID(),
		OriginalName: gofakeit.Word() + ".png",
		MimeType:     "image/png",
		Size:         int64(gofakeit.IntRange(100, 5000)),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.InsertMedia(context.Background(), &asset))
	return asset
}

func TestJanitorCascadeSurvivesTransientFailure(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMedia()
	author := primitive.NewObjectID()
	a := seedAsset(t, store, author)
	b := seedAsset(t, store, author)
	c := seedAsset(t, store, author)

	blobs := &fakeBlobs{failFor: map[string]int{b.StorageKey: 1}}
	janitor := NewMediaJanitor(store, blobs, logging.Discard())

	body := encode(t, events.PostDeleted{
		PostID:   primitive.NewObjectID().Hex(),
		AuthorID: author.Hex(),
		MediaIDs: []string{a.ID.Hex(), b.ID.Hex(), c.ID.Hex()},
	})

	err := janitor.HandlePostDeleted(ctx, body)
	require.Error(t, err)
	assert.ErrorContains(t, err, b.ID.Hex())

	remaining, err := store.ListMediaByOwner(ctx, author)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "failures must not stop the other assets")
	assert.Equal(t, b.ID, remaining[0].ID)

	// redelivery finishes the job
	require.NoError(t, janitor.HandlePostDeleted(ctx, body))
	remaining, err = store.ListMediaByOwner(ctx, author)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.ElementsMatch(t, []string{a.StorageKey, b.StorageKey, c.StorageKey}, blobs.deleted)
}

func TestJanitorSkipsForeignAndMissingAssets(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMedia()
	author := primitive.NewObjectID()
	stranger := primitive.NewObjectID()
	foreign := seedAsset(t, store, stranger)

	blobs := &fakeBlobs{}
	janitor := NewMediaJanitor(store, blobs, logging.Discard())

	body := encode(t, events.PostDeleted{
		PostID:   primitive.NewObjectID().Hex(),
		AuthorID: author.Hex(),
		MediaIDs: []string{foreign.ID.Hex(), primitive.NewObjectID().Hex(), "not-an-id"},
	})
	require.NoError(t, janitor.HandlePostDeleted(ctx, body))

	_, err := store.FindMedia(ctx, foreign.ID)
	require.NoError(t, err, "assets of other users stay")
	assert.Empty(t, blobs.deleted)
}

func TestJanitorRejectsMalformed(t *testing.T) {
	janitor := NewMediaJanitor(memstore.NewMedia(), &fakeBlobs{}, logging.Discard())
	err := janitor.HandlePostDeleted(context.Background(), []byte(`{"mediaIds":["x"]}`))
	assert.ErrorIs(t, err, events.ErrMalformed)
}
