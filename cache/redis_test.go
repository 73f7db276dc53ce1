package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, time.Hour, zap.NewNop()), mr
}

func TestRedisCache_SetGetRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "q", "d", "p", nil)
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte(`{"answer":"42"}`)))

	payload, err := c.Get(ctx, "q", "d", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"answer":"42"}`), payload)

	stats := c.Stats(ctx)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestRedisCache_AppContextBypassesCache(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	appCtx := map[string]any{"type": "risk_analytics"}

	require.NoError(t, c.Set(ctx, "q", "d", "p", appCtx, []byte("x")))
	_, err := c.Get(ctx, "q", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("y")))
	_, err = c.Get(ctx, "q", "d", "p", appCtx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mrCache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, mrCache.Set(ctx, "q", "d", "p", nil, []byte("x")))
	mr.FastForward(2 * time.Hour)

	_, err := mrCache.Get(ctx, "q", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_BackendDownTreatedAsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, time.Hour, zap.NewNop())
	ctx := context.Background()

	mr.Close()

	_, err := c.Get(ctx, "q", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("x")))
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q1", "d", "p", nil, []byte("x")))
	require.NoError(t, c.Set(ctx, "q2", "d", "p", nil, []byte("y")))
	require.NoError(t, c.Invalidate(ctx))

	assert.Equal(t, 0, c.Stats(ctx).Size)
	_, err := c.Get(ctx, "q1", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
