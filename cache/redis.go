package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redis 键前缀，Invalidate 按此前缀批量删除。
const redisKeyPrefix = "prism:cache:"

// RedisCache go-redis 后端的响应缓存。
// 任何后端错误都降级为未命中，不向调用方传播。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewRedisCache 创建 Redis 响应缓存。
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "redis_cache")),
	}
}

// Get 查询缓存。appContext 非空时必然未命中。
func (c *RedisCache) Get(ctx context.Context, query, domain, promptName string, appContext map[string]any) ([]byte, error) {
	if len(appContext) > 0 {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	key := redisKeyPrefix + Key(query, domain, promptName)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed, treating as miss", zap.Error(err))
		}
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	return payload, nil
}

// Set 写入缓存。appContext 非空时为空操作。
func (c *RedisCache) Set(ctx context.Context, query, domain, promptName string, appContext map[string]any, payload []byte) error {
	if len(appContext) > 0 {
		return nil
	}

	key := redisKeyPrefix + Key(query, domain, promptName)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.Error(err))
	}
	return nil
}

// Stats 返回命中统计。Size 为当前前缀下的键数量，统计失败时为 0。
func (c *RedisCache) Stats(ctx context.Context) Stats {
	size := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed during stats", zap.Error(err))
	}

	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Size:      size,
		HitRate:   hitRate(hits, misses),
	}
}

// Invalidate 删除前缀下的全部条目。
func (c *RedisCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	c.logger.Info("cache invalidated", zap.Int("cleared", len(keys)))
	return nil
}
