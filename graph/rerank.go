package graph

import (
	"context"
	"sort"

	"github.com/BaSui01/prism/rerank"
	"go.uber.org/zap"
)

// 最终进入生成阶段的文档上限。
const rerankKeepTop = 5

// Reranker 重排节点：交叉编码器对相关文档精排。
// 未配置重排服务、候选不足或调用失败时按评分置信度降序排列。
type Reranker struct {
	provider rerank.Provider // 可为 nil
	logger   *zap.Logger
}

// NewReranker 创建重排节点。provider 为 nil 时只按置信度排序。
func NewReranker(provider rerank.Provider, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		provider: provider,
		logger:   logger.With(zap.String("component", "reranker_node")),
	}
}

// Rerank 过滤出相关文档、精排并截断到前 5 篇，结果写回 GradedDocs。
func (r *Reranker) Rerank(ctx context.Context, state *State) {
	relevant := make([]GradedDocument, 0, len(state.GradedDocs))
	for _, gd := range state.GradedDocs {
		if gd.Relevance == Relevant {
			relevant = append(relevant, gd)
		}
	}

	if r.provider != nil && len(relevant) >= 2 {
		if reranked, ok := r.crossEncode(ctx, state.Query, relevant); ok {
			relevant = reranked
		} else {
			sortByConfidence(relevant)
		}
	} else {
		sortByConfidence(relevant)
	}

	if len(relevant) > rerankKeepTop {
		relevant = relevant[:rerankKeepTop]
	}
	state.GradedDocs = relevant

	r.logger.Debug("rerank completed", zap.Int("documents", len(relevant)))
}

// crossEncode 调用重排服务，按相关性分数返回新顺序。
func (r *Reranker) crossEncode(ctx context.Context, query string, docs []GradedDocument) ([]GradedDocument, bool) {
	texts := make([]string, len(docs))
	for i, gd := range docs {
		texts[i] = gd.Document.Content
	}

	results, err := r.provider.Rerank(ctx, query, texts, len(texts))
	if err != nil {
		r.logger.Warn("rerank call failed, falling back to confidence order", zap.Error(err))
		return nil, false
	}

	out := make([]GradedDocument, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		gd := docs[res.Index]
		gd.Confidence = res.Score
		out = append(out, gd)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func sortByConfidence(docs []GradedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Confidence > docs[j].Confidence
	})
}
