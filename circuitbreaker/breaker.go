// Package circuitbreaker 提供按依赖命名的熔断器与注册表。
// 状态机：连续失败达到阈值后打开；冷却期过后半开试探；
// 半开状态连续成功两次恢复关闭，任一失败立即重新打开。
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen 熔断器打开时拒绝调用。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen），
	// 自最后一次失败起计
	ResetTimeout time.Duration

	// HalfOpenSuccesses 半开状态下恢复关闭所需的连续成功次数
	HalfOpenSuccesses int

	// OnStateChange 状态变更回调
	OnStateChange func(name string, from State, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:         5,
		ResetTimeout:      60 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Status 熔断器状态快照。
type Status struct {
	Name         string    `json:"name"`
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
}

// Breaker 单个命名依赖的熔断器。
type Breaker struct {
	name   string
	config *Config
	logger *zap.Logger

	mu                sync.Mutex
	state             State
	failureCount      int       // 连续失败次数
	lastFailureTime   time.Time // 最后失败时间
	halfOpenSuccesses int       // 半开状态下的连续成功次数
}

// NewBreaker 创建熔断器
func NewBreaker(name string, config *Config, logger *zap.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		name:   name,
		config: config,
		logger: logger.With(zap.String("breaker", name)),
		state:  StateClosed,
	}
}

// Allow 检查当前是否允许调用。打开状态下冷却期已过则转入半开。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil

	case StateOpen:
		if time.Since(b.lastFailureTime) > b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenSuccesses = 0
			b.logger.Info("circuit breaker entering half-open state")
			return nil
		}
		return ErrCircuitOpen

	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess 记录一次成功调用。
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.HalfOpenSuccesses {
			b.logger.Info("circuit breaker recovered",
				zap.Int("half_open_successes", b.halfOpenSuccesses))
			b.setState(StateClosed)
			b.failureCount = 0
			b.halfOpenSuccesses = 0
		}

	case StateOpen:
		b.logger.Warn("success recorded while circuit breaker open")
	}
}

// RecordFailure 记录一次失败调用。
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit breaker opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold))
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		b.logger.Warn("half-open probe failed, reopening circuit breaker")
		b.setState(StateOpen)
		b.halfOpenSuccesses = 0
	}
}

// Call 执行调用：Allow 拒绝或 fn 返回错误均计入状态机。
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		b.RecordFailure()
		return err
	}

	b.RecordSuccess()
	return nil
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status 返回状态快照。
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:         b.name,
		State:        b.state.String(),
		FailureCount: b.failureCount,
		LastFailure:  b.lastFailureTime,
	}
}

// Reset 手动恢复到关闭状态。
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenSuccesses = 0

	b.logger.Info("circuit breaker reset",
		zap.String("from_state", oldState.String()))

	if b.config.OnStateChange != nil && oldState != StateClosed {
		go b.config.OnStateChange(b.name, oldState, StateClosed)
	}
}

// setState 设置状态并触发回调。调用方需持有锁。
func (b *Breaker) setState(newState State) {
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, oldState, newState)
	}
}
