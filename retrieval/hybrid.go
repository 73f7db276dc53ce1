package retrieval

import (
	"context"
	"fmt"

	"github.com/BaSui01/prism/embedding"
	"go.uber.org/zap"
)

// HybridConfig 混合检索配置。
type HybridConfig struct {
	// LexicalWeight BM25 一侧的 RRF 权重
	LexicalWeight float64 `json:"lexical_weight" yaml:"lexical_weight"`

	// SemanticWeight 向量一侧的 RRF 权重
	SemanticWeight float64 `json:"semantic_weight" yaml:"semantic_weight"`

	// RRFConstant RRF 平滑常数
	RRFConstant float64 `json:"rrf_constant" yaml:"rrf_constant"`

	// TopK 每一侧的候选数量
	TopK int `json:"top_k" yaml:"top_k"`

	// BM25K1 / BM25B 词法索引参数
	BM25K1 float64 `json:"bm25_k1" yaml:"bm25_k1"`
	BM25B  float64 `json:"bm25_b" yaml:"bm25_b"`
}

// DefaultHybridConfig 返回默认混合检索配置。
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		LexicalWeight:  0.4,
		SemanticWeight: 0.6,
		RRFConstant:    RRFConstant,
		TopK:           10,
		BM25K1:         DefaultBM25K1,
		BM25B:          DefaultBM25B,
	}
}

// HybridRetriever 双路检索器：BM25 词法与向量语义，RRF 融合。
// 词法索引为空时自动退化为纯语义检索。
type HybridRetriever struct {
	config   HybridConfig
	bm25     *BM25Index
	index    VectorIndex
	embedder embedding.Provider
	logger   *zap.Logger
}

// NewHybridRetriever 创建混合检索器。bm25 可为 nil（纯语义模式）。
func NewHybridRetriever(
	config HybridConfig,
	bm25 *BM25Index,
	index VectorIndex,
	embedder embedding.Provider,
	logger *zap.Logger,
) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopK <= 0 {
		config.TopK = DefaultHybridConfig().TopK
	}
	return &HybridRetriever{
		config:   config,
		bm25:     bm25,
		index:    index,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "hybrid_retriever")),
	}
}

// Retrieve 执行双路检索并返回融合后的排序结果。
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	var lists []RankedList

	lexicalAvailable := r.bm25 != nil && r.bm25.Len() > 0
	if lexicalAvailable {
		lexical := r.bm25.Search(query, r.config.TopK)
		lists = append(lists, RankedList{Documents: lexical, Weight: r.config.LexicalWeight})
	} else {
		r.logger.Info("lexical index unavailable, semantic-only retrieval")
	}

	semantic, err := r.semanticSearch(ctx, query)
	if err != nil {
		if !lexicalAvailable {
			return nil, fmt.Errorf("semantic search failed: %w", err)
		}
		r.logger.Warn("semantic search failed, lexical-only retrieval", zap.Error(err))
	} else {
		lists = append(lists, RankedList{Documents: semantic, Weight: r.config.SemanticWeight})
	}

	fused := FuseRRF(lists, r.config.RRFConstant)
	if len(fused) > r.config.TopK {
		fused = fused[:r.config.TopK]
	}

	r.logger.Debug("hybrid retrieval completed",
		zap.Int("fused", len(fused)),
		zap.Bool("lexical", lexicalAvailable))
	return fused, nil
}

func (r *HybridRetriever) semanticSearch(ctx context.Context, query string) ([]Document, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.index.Search(ctx, vec, r.config.TopK)
}
