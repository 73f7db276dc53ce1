package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex 基于余弦相似度的内存向量索引，用于测试与小规模部署。
type MemoryIndex struct {
	mu      sync.RWMutex
	docs    []Document
	vectors [][]float64
}

// NewMemoryIndex 创建空的内存向量索引.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add 添加文档及其向量.
func (m *MemoryIndex) Add(doc Document, embedding []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	m.vectors = append(m.vectors, embedding)
}

// Search 以查询向量检索相似文档.
func (m *MemoryIndex) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Document, 0, len(m.docs))
	for i, doc := range m.docs {
		sim := cosineSimilarity(queryEmbedding, m.vectors[i])
		d := doc
		d.Score = sim
		results = append(results, d)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count 返回索引中的文档数量.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
