package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Key
// ---------------------------------------------------------------------------

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	k1 := Key("What is the pipeline?", "funds", "v1")
	k2 := Key("  what is the pipeline?  ", "FUNDS", " V1 ")
	assert.Equal(t, k1, k2)

	k3 := Key("different query", "funds", "v1")
	assert.NotEqual(t, k1, k3)
}

func TestKey_Length(t *testing.T) {
	t.Parallel()

	// sha256 前 16 字节 → 32 个十六进制字符。
	assert.Len(t, Key("q", "d", "p"), 32)
}

func TestProperty_KeyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("same normalized inputs always produce the same key", prop.ForAll(
		func(query, domain, prompt string) bool {
			return Key(query, domain, prompt) == Key(query, domain, prompt)
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}

// ---------------------------------------------------------------------------
// LocalCache
// ---------------------------------------------------------------------------

func TestLocalCache_SetGetRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(DefaultLocalConfig(), zap.NewNop())
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
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestLocalCache_AppContextBypassesCache(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(DefaultLocalConfig(), zap.NewNop())
	ctx := context.Background()
	appCtx := map[string]any{"type": "monte_carlo"}

	// Set 带 app_context 不落缓存。
	require.NoError(t, c.Set(ctx, "q", "d", "p", appCtx, []byte("x")))
	_, err := c.Get(ctx, "q", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// 已缓存的键，带 app_context 的 Get 也不命中。
	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("y")))
	_, err = c.Get(ctx, "q", "d", "p", appCtx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLocalCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(LocalConfig{MaxSize: 10, TTL: 10 * time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("x")))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "q", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLocalCache_ExpiredEntryLeavesNoOrderResidue(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(LocalConfig{MaxSize: 10, TTL: 10 * time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("x")))
	time.Sleep(20 * time.Millisecond)

	// 过期读取会顺带删除条目，插入顺序账本也必须同步清理。
	_, err := c.Get(ctx, "q", "d", "p", nil)
	require.ErrorIs(t, err, ErrCacheMiss)

	c.mu.Lock()
	assert.Empty(t, c.order)
	c.mu.Unlock()

	// 同一 key 重写后账本里只能出现一次。
	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("y")))
	require.NoError(t, c.Set(ctx, "q", "d", "p", nil, []byte("z")))

	c.mu.Lock()
	assert.Len(t, c.order, 1)
	assert.Len(t, c.entries, 1)
	c.mu.Unlock()

	payload, err := c.Get(ctx, "q", "d", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("z"), payload)
}

func TestLocalCache_ExpiredRewritesDoNotInflateEviction(t *testing.T) {
	t.Parallel()

	cfg := LocalConfig{MaxSize: 150, TTL: 10 * time.Millisecond}
	c := NewLocalCache(cfg, zap.NewNop())
	ctx := context.Background()

	// 一批条目过期后经 Get 删除再重写，随后填满容量触发驱逐。
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("stale-%d", i), "d", "p", nil, []byte("x")))
	}
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 50; i++ {
		_, err := c.Get(ctx, fmt.Sprintf("stale-%d", i), "d", "p", nil)
		require.ErrorIs(t, err, ErrCacheMiss)
		require.NoError(t, c.Set(ctx, fmt.Sprintf("stale-%d", i), "d", "p", nil, []byte("x")))
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("fresh-%d", i), "d", "p", nil, []byte("x")))
	}
	require.Equal(t, 150, c.Stats(ctx).Size)

	// 驱逐一批 100 条后必须实际释放 100 个活跃条目。
	require.NoError(t, c.Set(ctx, "overflow", "d", "p", nil, []byte("x")))

	stats := c.Stats(ctx)
	assert.Equal(t, 51, stats.Size)
	assert.Equal(t, uint64(100), stats.Evictions)
	assert.LessOrEqual(t, stats.Size, cfg.MaxSize)
}

func TestLocalCache_EvictsOldestBatchAtCapacity(t *testing.T) {
	t.Parallel()

	cfg := LocalConfig{MaxSize: 150, TTL: time.Hour}
	c := NewLocalCache(cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("query-%d", i), "d", "p", nil, []byte("x")))
	}
	require.Equal(t, 150, c.Stats(ctx).Size)

	// 第 151 条触发最旧 100 条驱逐。
	require.NoError(t, c.Set(ctx, "query-150", "d", "p", nil, []byte("x")))

	stats := c.Stats(ctx)
	assert.Equal(t, 51, stats.Size)
	assert.Equal(t, uint64(100), stats.Evictions)

	// 最旧条目已被驱逐，最新条目保留。
	_, err := c.Get(ctx, "query-0", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "query-149", "d", "p", nil)
	assert.NoError(t, err)
}

func TestLocalCache_Invalidate(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(DefaultLocalConfig(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q1", "d", "p", nil, []byte("x")))
	require.NoError(t, c.Set(ctx, "q2", "d", "p", nil, []byte("y")))
	require.NoError(t, c.Invalidate(ctx))

	assert.Equal(t, 0, c.Stats(ctx).Size)
	_, err := c.Get(ctx, "q1", "d", "p", nil)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
