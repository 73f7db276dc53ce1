package mocks

import "context"

// MockEmbedder 可编排的 embedding.Provider 实现。
// 默认按文本首字符生成确定性二维向量，也可按文本精确指定。
type MockEmbedder struct {
	vectors map[string][]float64
	err     error
}

// NewMockEmbedder 创建默认 Mock 嵌入器。
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float64)}
}

// WithVector 为指定文本设置返回向量。
func (m *MockEmbedder) WithVector(text string, vec []float64) *MockEmbedder {
	m.vectors[text] = vec
	return m
}

// WithError 设置所有调用返回的错误。
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.err = err
	return m
}

func (m *MockEmbedder) Name() string    { return "mock-embedder" }
func (m *MockEmbedder) Dimensions() int { return 2 }

// EmbedQuery 嵌入单个查询。
func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	if vec, ok := m.vectors[query]; ok {
		return vec, nil
	}
	if len(query) == 0 {
		return []float64{0, 0}, nil
	}
	// 确定性退化向量，保证相同文本得到相同嵌入。
	c := float64(query[0])
	return []float64{c / 255.0, 1.0 - c/255.0}, nil
}
