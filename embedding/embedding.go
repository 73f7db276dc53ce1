// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package embedding 把查询文本转换为向量表示，供语义检索与
// RRF 融合使用。语料离线入库，服务端只做查询侧嵌入。
package embedding

import "context"

// Provider 查询嵌入接口。
type Provider interface {
	// EmbedQuery 为单条查询生成嵌入向量。
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name 返回提供者名称。
	Name() string

	// Dimensions 返回输出向量维度。
	Dimensions() int
}
