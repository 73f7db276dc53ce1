package graph

import (
	"context"

	"github.com/BaSui01/prism/retrieval"
	"go.uber.org/zap"
)

// Retriever 检索节点：查询扩展 → 混合检索 → 优先级重排。
// 任何失败都落为空结果，生成阶段继续无上下文执行。
type Retriever struct {
	registry    *retrieval.Registry
	expander    *retrieval.Expander
	collections map[string]string // domain → collection
	logger      *zap.Logger
}

// NewRetriever 创建检索节点。collections 把请求 domain 映射到集合名。
func NewRetriever(
	registry *retrieval.Registry,
	expander *retrieval.Expander,
	collections map[string]string,
	logger *zap.Logger,
) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		registry:    registry,
		expander:    expander,
		collections: collections,
		logger:      logger.With(zap.String("component", "retriever_node")),
	}
}

// CollectionFor 返回 domain 对应的集合名，未配置时返回 false。
func (r *Retriever) CollectionFor(domain string) (string, bool) {
	c, ok := r.collections[domain]
	return c, ok
}

// Collections 返回 domain → collection 的映射副本。
func (r *Retriever) Collections() map[string]string {
	out := make(map[string]string, len(r.collections))
	for k, v := range r.collections {
		out[k] = v
	}
	return out
}

// Retrieve 执行检索并把结果写入状态。失败时 RetrievedDocs 为空。
func (r *Retriever) Retrieve(ctx context.Context, state *State) {
	collection, ok := r.collections[state.Domain]
	if !ok {
		r.logger.Warn("no collection configured for domain, skipping retrieval",
			zap.String("domain", state.Domain))
		state.RetrievedDocs = nil
		return
	}

	query := state.Query
	if r.expander != nil {
		query = r.expander.Expand(ctx, state.Query, string(state.Intent), state.Archetype, state.Region)
	}

	retriever, err := r.registry.Get(ctx, collection)
	if err != nil {
		r.logger.Error("failed to get retriever, returning empty results",
			zap.String("collection", collection),
			zap.Error(err))
		state.RetrievedDocs = nil
		return
	}

	docs, err := retriever.Retrieve(ctx, query)
	if err != nil {
		r.logger.Error("retrieval failed, returning empty results",
			zap.String("collection", collection),
			zap.Error(err))
		state.RetrievedDocs = nil
		return
	}

	state.RetrievedDocs = retrieval.PriorityReorder(docs, string(state.Intent), state.Archetype, state.Region)

	r.logger.Debug("retrieval completed",
		zap.String("collection", collection),
		zap.Int("documents", len(state.RetrievedDocs)))
}
