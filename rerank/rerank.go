// Package rerank 提供交叉编码器重排：按与查询的相关性对候选文档
// 重新打分。管线在评分节点之后用它精排进入生成阶段的文档。
package rerank

import "context"

// Result 单篇文档的重排结果。Index 指向输入切片中的原始位置，
// Score 为归一化相关性分数，越大越相关。
type Result struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Provider 重排服务接口。实现按相关性降序返回最多 topN 条结果。
type Provider interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
	Name() string
}
