package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 驱逐批量：容量打满时一次淘汰最旧的 100 条。
const evictBatch = 100

// LocalConfig 本地缓存配置。
type LocalConfig struct {
	MaxSize int           `json:"max_size" yaml:"max_size"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultLocalConfig 返回默认配置。
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		MaxSize: 1000,
		TTL:     DefaultTTL,
	}
}

type localEntry struct {
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// LocalCache 互斥锁保护的进程内响应缓存。
// 条目按插入顺序记账，容量满时成批淘汰最旧条目。
type LocalCache struct {
	config LocalConfig
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*localEntry
	order   []string // 插入顺序，用于最旧优先驱逐

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewLocalCache 创建本地响应缓存。
func NewLocalCache(config LocalConfig, logger *zap.Logger) *LocalCache {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultLocalConfig().MaxSize
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalCache{
		config:  config,
		logger:  logger.With(zap.String("component", "response_cache")),
		entries: make(map[string]*localEntry),
	}
}

// Get 查询缓存。appContext 非空时必然未命中。
func (c *LocalCache) Get(ctx context.Context, query, domain, promptName string, appContext map[string]any) ([]byte, error) {
	if len(appContext) > 0 {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}

	key := Key(query, domain, promptName)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			delete(c.entries, key)
			c.dropOrderKey(key)
		}
		c.misses++
		return nil, ErrCacheMiss
	}

	c.hits++
	return entry.payload, nil
}

// Set 写入缓存。appContext 非空时为空操作。
func (c *LocalCache) Set(ctx context.Context, query, domain, promptName string, appContext map[string]any, payload []byte) error {
	if len(appContext) > 0 {
		return nil
	}

	key := Key(query, domain, promptName)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxSize {
		c.evictOldest()
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &localEntry{
		payload:   payload,
		createdAt: now,
		expiresAt: now.Add(c.config.TTL),
	}
	return nil
}

// dropOrderKey 将 key 从插入顺序账本中移除，保持账本与条目一一对应。
// 否则同一 key 过期后重写会在账本中出现两次，驱逐批量也会虚高。
// 调用方需持有锁。
func (c *LocalCache) dropOrderKey(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictOldest 按插入顺序淘汰最旧的一批条目。调用方需持有锁。
func (c *LocalCache) evictOldest() {
	n := evictBatch
	if n > len(c.order) {
		n = len(c.order)
	}
	for _, key := range c.order[:n] {
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			c.evictions++
		}
	}
	c.order = c.order[n:]

	c.logger.Debug("cache eviction completed",
		zap.Int("evicted", n),
		zap.Int("remaining", len(c.entries)))
}

// Stats 返回命中统计。
func (c *LocalCache) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		HitRate:   hitRate(c.hits, c.misses),
	}
}

// Invalidate 清空全部条目。
func (c *LocalCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := len(c.entries)
	c.entries = make(map[string]*localEntry)
	c.order = nil

	c.logger.Info("cache invalidated", zap.Int("cleared", cleared))
	return nil
}
