package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/prism/embedding"
	"go.uber.org/zap"
)

// Registry 按集合惰性构建并缓存 HybridRetriever。
// 词法索引在首次访问集合时从 DocumentSource 全量构建。
type Registry struct {
	config   HybridConfig
	source   DocumentSource
	indexFor func(collection string) VectorIndex
	embedder embedding.Provider
	logger   *zap.Logger

	mu         sync.RWMutex
	retrievers map[string]*HybridRetriever
}

// NewRegistry 创建检索器注册表。indexFor 为每个集合提供向量索引视图。
func NewRegistry(
	config HybridConfig,
	source DocumentSource,
	indexFor func(collection string) VectorIndex,
	embedder embedding.Provider,
	logger *zap.Logger,
) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:     config,
		source:     source,
		indexFor:   indexFor,
		embedder:   embedder,
		logger:     logger.With(zap.String("component", "retriever_registry")),
		retrievers: make(map[string]*HybridRetriever),
	}
}

// Get 返回集合对应的检索器，必要时构建。并发安全，双重检查惰性初始化。
func (r *Registry) Get(ctx context.Context, collection string) (*HybridRetriever, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	r.mu.RLock()
	if ret, ok := r.retrievers[collection]; ok {
		r.mu.RUnlock()
		return ret, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// 加写锁后重查，避免并发重复构建。
	if ret, ok := r.retrievers[collection]; ok {
		return ret, nil
	}

	ret, err := r.build(ctx, collection)
	if err != nil {
		return nil, err
	}
	r.retrievers[collection] = ret
	return ret, nil
}

// Collections 返回已构建检索器的集合名列表。
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.retrievers))
	for name := range r.retrievers {
		out = append(out, name)
	}
	return out
}

func (r *Registry) build(ctx context.Context, collection string) (*HybridRetriever, error) {
	var bm25 *BM25Index

	docs, err := r.source.ListDocuments(ctx, collection)
	if err != nil {
		// 词法索引不可用不是错误，检索器退化为纯语义模式。
		r.logger.Warn("failed to list documents for lexical index",
			zap.String("collection", collection),
			zap.Error(err))
	} else if len(docs) == 0 {
		r.logger.Info("collection empty, lexical index skipped",
			zap.String("collection", collection))
	} else {
		bm25 = NewBM25Index(docs, r.config.BM25K1, r.config.BM25B)
		r.logger.Info("lexical index built",
			zap.String("collection", collection),
			zap.Int("documents", bm25.Len()))
	}

	index := r.indexFor(collection)
	if index == nil {
		return nil, fmt.Errorf("no vector index for collection %q", collection)
	}

	return NewHybridRetriever(r.config, bm25, index, r.embedder, r.logger), nil
}
