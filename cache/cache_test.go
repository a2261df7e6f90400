package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	_, err := r.Get(ctx, "post:1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, r.Set(ctx, "post:1", []byte(`{"id":"1"}`), time.Hour))
	got, err := r.Get(ctx, "post:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("post:1"))

	require.NoError(t, r.Delete(ctx, "post:1"))
	_, err = r.Get(ctx, "post:1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestDeletePattern(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set("posts:"+strconv.Itoa(i)+":10", "x"))
	}
	require.NoError(t, mr.Set("post:abc", "keep"))

	require.NoError(t, r.DeletePattern(ctx, "posts:*"))

	keys := mr.Keys()
	assert.Equal(t, []string{"post:abc"}, keys)
}

func TestIncrTracksExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	n, err := r.Incr(ctx, "rl:1.2.3.4:0", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Second)
	n, err = r.Incr(ctx, "rl:1.2.3.4:0", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("rl:1.2.3.4:0"))
}
