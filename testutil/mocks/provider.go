// =============================================================================
// 🧪 Mock LLM Provider
// =============================================================================
// 可编排的 llm.Provider 实现，支持固定响应、响应队列、错误注入、
// 延迟与失败计数，供各包单元测试使用。
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/prism/llm"
)

// MockProvider 可编排的 llm.Provider 实现。
type MockProvider struct {
	mu sync.Mutex

	name     string
	jsonMode bool

	response  string
	responses []string // 队列模式：逐次出队
	err       error
	failAfter int // >0 时第 N+1 次调用开始返回错误
	delay     time.Duration

	streamChunks []string

	completionFn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls int
}

// NewMockProvider 创建默认 Mock Provider。
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:     "mock",
		response: "mock response",
	}
}

// WithName 设置 Provider 名称。
func (m *MockProvider) WithName(name string) *MockProvider {
	m.name = name
	return m
}

// WithResponse 设置固定响应内容。
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.response = response
	return m
}

// WithResponses 设置响应队列，按调用顺序出队，耗尽后复用最后一条。
func (m *MockProvider) WithResponses(responses ...string) *MockProvider {
	m.responses = responses
	return m
}

// WithError 设置所有调用返回的错误。
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

// WithFailAfter 前 n 次调用成功，之后返回错误。
func (m *MockProvider) WithFailAfter(n int, err error) *MockProvider {
	m.failAfter = n
	m.err = err
	return m
}

// WithDelay 为每次调用注入延迟。
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

// WithStreamChunks 设置流式响应分片。
func (m *MockProvider) WithStreamChunks(chunks ...string) *MockProvider {
	m.streamChunks = chunks
	return m
}

// WithJSONMode 声明支持原生 JSON 模式。
func (m *MockProvider) WithJSONMode() *MockProvider {
	m.jsonMode = true
	return m
}

// WithCompletionFunc 完全自定义 Completion 行为。
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.completionFn = fn
	return m
}

// Calls 返回 Completion 被调用的次数。
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Name() string           { return m.name }
func (m *MockProvider) SupportsJSONMode() bool { return m.jsonMode }

// HealthCheck 始终报告健康。
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 按编排返回响应或错误。
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	fn := m.completionFn
	var content string
	if len(m.responses) > 0 {
		idx := call - 1
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		content = m.responses[idx]
	} else {
		content = m.response
	}
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}

	if m.err != nil && (m.failAfter == 0 || call > m.failAfter) {
		return nil, m.err
	}

	return &llm.ChatResponse{
		ID:       "mock-response",
		Provider: m.name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
			},
		},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		CreatedAt: time.Now(),
	}, nil
}

// Stream 按编排发送分片后关闭通道。
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	chunks := m.streamChunks
	m.mu.Unlock()

	if m.err != nil && (m.failAfter == 0 || call > m.failAfter) {
		return nil, m.err
	}

	if len(chunks) == 0 {
		chunks = []string{m.response}
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, c := range chunks {
			chunk := llm.StreamChunk{
				ID:       "mock-stream",
				Provider: m.name,
				Index:    0,
				Delta:    llm.Message{Role: llm.RoleAssistant, Content: c},
			}
			if i == len(chunks)-1 {
				chunk.FinishReason = "stop"
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}()
	return ch, nil
}
