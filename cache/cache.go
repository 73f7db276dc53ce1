// Package cache 提供查询响应缓存：本地 TTL 缓存为默认实现，
// 可选 Redis 后端共用同一接口。带 app_context 的请求永不缓存。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss 缓存未命中。后端错误也以未命中形式呈现给调用方。
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL 响应缓存默认存活时间。
const DefaultTTL = time.Hour

// ResponseCache 响应缓存接口。载荷为序列化后的响应字节，
// 缓存命中与新鲜响应必须字节一致。
type ResponseCache interface {
	// Get 查询缓存。appContext 非空时必然未命中。
	Get(ctx context.Context, query, domain, promptName string, appContext map[string]any) ([]byte, error)

	// Set 写入缓存。appContext 非空时为空操作。
	Set(ctx context.Context, query, domain, promptName string, appContext map[string]any, payload []byte) error

	// Stats 返回命中统计。
	Stats(ctx context.Context) Stats

	// Invalidate 清空全部条目。
	Invalidate(ctx context.Context) error
}

// Stats 缓存统计。
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

// Key 生成缓存键：各部分小写去空白后以 "|" 连接，取 sha256 前 16 字节的
// 十六进制。大小写与首尾空白差异的请求命中同一条目。
func Key(query, domain, promptName string) string {
	normalized := normalize(query) + "|" + normalize(domain) + "|" + normalize(promptName)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
