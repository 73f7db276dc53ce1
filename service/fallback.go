package service

import (
	"context"
	"fmt"

	"github.com/BaSui01/prism/embedding"
	"github.com/BaSui01/prism/graph"
	"github.com/BaSui01/prism/llm"
	"github.com/BaSui01/prism/retrieval"
	"go.uber.org/zap"
)

// fallbackTopK 降级路径的向量检索数量。
const fallbackTopK = 5

// FallbackEngine 单程降级引擎：跳过意图路由、评分与重排，
// 直接向量检索 + 通用模板生成。管线失败或熔断打开时使用。
type FallbackEngine struct {
	embedder    embedding.Provider
	indexFor    func(collection string) retrieval.VectorIndex
	collections map[string]string // domain → collection
	provider    llm.Provider
	model       string
	logger      *zap.Logger
}

// NewFallbackEngine 创建降级引擎。
func NewFallbackEngine(
	embedder embedding.Provider,
	indexFor func(collection string) retrieval.VectorIndex,
	collections map[string]string,
	provider llm.Provider,
	model string,
	logger *zap.Logger,
) *FallbackEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackEngine{
		embedder:    embedder,
		indexFor:    indexFor,
		collections: collections,
		provider:    provider,
		model:       model,
		logger:      logger.With(zap.String("component", "fallback_engine")),
	}
}

// Query 执行降级查询。检索失败退化为无上下文生成；只有生成本身
// 失败才返回错误。
func (f *FallbackEngine) Query(ctx context.Context, query, domain string) (string, []graph.Source, error) {
	docs := f.search(ctx, query, domain)

	graded := make([]graph.GradedDocument, 0, len(docs))
	for _, d := range docs {
		graded = append(graded, graph.GradedDocument{
			Document:   d,
			Relevance:  graph.Relevant,
			Confidence: d.Score,
		})
	}

	prompt := graph.RenderTemplate(graph.BuiltinTemplate(graph.IntentGeneral),
		graph.BuildContextBlock(graded), query)

	resp, err := f.provider.Completion(ctx, &llm.ChatRequest{
		Model:    f.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("fallback generation: %w", err)
	}

	sources := make([]graph.Source, 0, len(graded))
	for _, g := range graded {
		sources = append(sources, graph.Source{
			FileName:   g.Document.FileName(),
			DocType:    g.Document.DocType(),
			Confidence: g.Confidence,
		})
	}

	f.logger.Info("fallback query served",
		zap.String("domain", domain),
		zap.Int("documents", len(docs)))

	return resp.Text(), sources, nil
}

func (f *FallbackEngine) search(ctx context.Context, query, domain string) []retrieval.Document {
	collection, ok := f.collections[domain]
	if !ok {
		f.logger.Warn("no collection for domain, generating without context",
			zap.String("domain", domain))
		return nil
	}

	index := f.indexFor(collection)
	if index == nil {
		return nil
	}

	vec, err := f.embedder.EmbedQuery(ctx, query)
	if err != nil {
		f.logger.Warn("fallback embedding failed", zap.Error(err))
		return nil
	}

	docs, err := index.Search(ctx, vec, fallbackTopK)
	if err != nil {
		f.logger.Warn("fallback vector search failed", zap.Error(err))
		return nil
	}
	return docs
}
