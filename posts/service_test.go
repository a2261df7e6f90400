package posts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"socialhub/apperr"
	"socialhub/cache"
	"socialhub/clock"
	"socialhub/events"
	"socialhub/logging"
	"socialhub/memstore"
	"socialhub/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

type testEnv struct {
	svc     *Service
	store   *memstore.Posts
	emitter *recordingEmitter
	redis   *miniredis.Miniredis
	clock   *clock.Stub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	store := memstore.NewPosts()
	emitter := &recordingEmitter{}
	clk := clock.NewStub(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	c := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	svc := NewService(store, c, emitter, nil, clk, logging.Discard())
	return &testEnv{svc: svc, store: store, emitter: emitter, redis: mr, clock: clk}
}

func (e *testEnv) createPost(t *testing.T, author string, media ...string) string {
	t.Helper()
	e.clock.Advance(time.Second)
	post, err := e.svc.CreatePost(context.Background(), author, gofakeit.Sentence(8), media)
	require.NoError(t, err)
	return post.ID.Hex()
}

func TestCreatePostEmitsEvent(t *testing.T) {
	env := newTestEnv(t)
	author := primitive.NewObjectID().Hex()
	media := []string{primitive.NewObjectID().Hex()}

	post, err := env.svc.CreatePost(context.Background(), author, "  hello there  ", media)
	require.NoError(t, err)
	assert.Equal(t, "hello there", post.Content)

	require.Len(t, env.emitter.events, 1)
	created, ok := env.emitter.events[0].(events.PostCreated)
	require.True(t, ok)
	assert.Equal(t, post.ID.Hex(), created.PostID)
	assert.Equal(t, author, created.AuthorID)
	assert.Equal(t, "hello there", created.Content)
	assert.Equal(t, media, created.MediaIDs)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	author := primitive.NewObjectID().Hex()

	tooMany := make([]string, MaxMediaPerPost+1)
	for i := range tooMany {
		tooMany[i] = primitive.NewObjectID().Hex()
	}

	cases := map[string]struct {
		content string
		media   []string
	}{
		"empty":        {"   ", nil},
		"too short":    {"hi", nil},
		"too long":     {strings.Repeat("x", MaxContentLength+1), nil},
		"too much":     {"fine content", tooMany},
		"bad media id": {"fine content", []string{"not-an-id"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.CreatePost(context.Background(), author, tc.content, tc.media)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	assert.Empty(t, env.emitter.events)
}

func TestCreatePostInvalidatesListCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := primitive.NewObjectID().Hex()
	env.createPost(t, author)

	first, err := env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, first.Posts, 1)
	_, err = env.svc.ListPosts(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, env.redis.Exists("posts:1:10"))
	assert.True(t, env.redis.Exists("posts:2:5"))

	newID := env.createPost(t, author)
	assert.False(t, env.redis.Exists("posts:1:10"))
	assert.False(t, env.redis.Exists("posts:2:5"))

	second, err := env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, second.Posts, 2)
	assert.Equal(t, newID, second.Posts[0].ID.Hex())
	assert.Equal(t, int64(2), second.TotalPosts)
}

func TestListPostsServedFromCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createPost(t, primitive.NewObjectID().Hex())

	_, err := env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, env.redis.TTL("posts:1:10"))

	// a write that bypasses the service is invisible until the entry expires
	require.NoError(t, env.store.InsertPost(ctx, &models.Post{
		AuthorID:  primitive.NewObjectID(),
		Content:   "written elsewhere",
		CreatedAt: env.clock.Now(),
	}))
	cached, err := env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, cached.Posts, 1)
}

func TestGetPostCachesAndNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.createPost(t, primitive.NewObjectID().Hex())

	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, post.ID.Hex())
	assert.Equal(t, 3600*time.Second, env.redis.TTL("post:"+id))

	_, err = env.svc.GetPost(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.GetPost(ctx, "garbage")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePostOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := primitive.NewObjectID().Hex()
	media := []string{primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()}
	id := env.createPost(t, owner, media...)

	err := env.svc.DeletePost(ctx, id, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.svc.GetPost(ctx, id)
	require.NoError(t, err, "post must survive a non-owner delete")

	require.NoError(t, env.svc.DeletePost(ctx, id, owner))
	assert.False(t, env.redis.Exists("post:"+id))

	last := env.emitter.events[len(env.emitter.events)-1]
	deleted, ok := last.(events.PostDeleted)
	require.True(t, ok)
	assert.Equal(t, events.PostDeleted{PostID: id, AuthorID: owner, MediaIDs: media}, deleted)

	assert.ErrorIs(t, env.svc.DeletePost(ctx, id, owner), ErrNotFound)
}

func TestEmitFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	env.emitter.err = errors.New("outbox unavailable")

	_, err := env.svc.CreatePost(context.Background(), primitive.NewObjectID().Hex(), "some content", nil)
	assert.ErrorContains(t, err, "outbox unavailable")
}

func TestFailedEmitStillInvalidates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := primitive.NewObjectID().Hex()
	id := env.createPost(t, owner)

	_, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	_, err = env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, env.redis.Exists("post:"+id))
	require.True(t, env.redis.Exists("posts:1:10"))

	env.emitter.err = errors.New("broker down")
	require.ErrorContains(t, env.svc.DeletePost(ctx, id, owner), "broker down")

	assert.False(t, env.redis.Exists("post:"+id))
	assert.False(t, env.redis.Exists("posts:1:10"))
	_, err = env.svc.GetPost(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, env.redis.Exists("posts:1:10"))
	_, err = env.svc.CreatePost(ctx, owner, "written before the emit failed", nil)
	require.ErrorContains(t, err, "broker down")
	assert.False(t, env.redis.Exists("posts:1:10"))
}

func TestNormalizePage(t *testing.T) {
	p, l := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, DefaultPageSize, l)

	p, l = NormalizePage(3, 1000)
	assert.Equal(t, 3, p)
	assert.Equal(t, MaxPageSize, l)
}
