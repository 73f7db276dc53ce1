package circuitbreaker

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry 按名称管理熔断器，惰性创建。
type Registry struct {
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry 创建熔断器注册表，所有熔断器共享同一配置。
func NewRegistry(config *Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get 返回命名熔断器，不存在时创建。
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.config, r.logger)
	r.breakers[name] = b
	return b
}

// Reset 重置命名熔断器。未知名称返回错误。
func (r *Registry) Reset(name string) error {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown circuit breaker %q", name)
	}
	b.Reset()
	return nil
}

// StatusAll 返回全部熔断器的状态快照，按名称排序。
func (r *Registry) StatusAll() []Status {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, b.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
