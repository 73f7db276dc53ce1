package retrieval

import "context"

// VectorIndex 语义检索后端。实现方按余弦相似度返回前 topK 个文档，
// 分数写入 Document.Score。
type VectorIndex interface {
	// Search 以查询向量检索相似文档.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]Document, error)

	// Count 返回索引中的文档数量.
	Count(ctx context.Context) (int, error)
}

// DocumentSource 提供集合的全量文档，用于构建进程内 BM25 索引。
type DocumentSource interface {
	ListDocuments(ctx context.Context, collection string) ([]Document, error)
}
