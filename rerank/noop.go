package rerank

import "context"

// NoopProvider 未配置重排服务时的直通实现：保持输入顺序，
// 分数按位置线性递减，保证下游排序稳定。
type NoopProvider struct{}

// NewNoopProvider 创建直通重排实现。
func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

// Name 返回重排服务标识。
func (p *NoopProvider) Name() string { return "noop-rerank" }

// Rerank 按原始顺序返回最多 topN 条结果。
func (p *NoopProvider) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	n := len(documents)
	if topN > 0 && topN < n {
		n = topN
	}

	results := make([]Result, n)
	for i := 0; i < n; i++ {
		score := 1.0
		if len(documents) > 1 {
			score = 1.0 - float64(i)/float64(len(documents))
		}
		results[i] = Result{Index: i, Score: score}
	}
	return results, nil
}
