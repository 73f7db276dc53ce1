package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QdrantConfig 配置 Qdrant REST 客户端。
//
// 文档正文与元数据存放在 payload 中，字段名可按已有集合的约定覆盖。
type QdrantConfig struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	PayloadContentField  string `json:"payload_content_field" yaml:"payload_content_field"`   // default "content"
	PayloadMetadataField string `json:"payload_metadata_field" yaml:"payload_metadata_field"` // default "metadata"
}

// QdrantClient 通过 Qdrant REST API 提供向量检索与全量拉取。
// 单个客户端可服务多个集合。
type QdrantClient struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewQdrantClient 创建 Qdrant REST 客户端。
func NewQdrantClient(cfg QdrantConfig, logger *zap.Logger) *QdrantClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PayloadContentField == "" {
		cfg.PayloadContentField = "content"
	}
	if cfg.PayloadMetadataField == "" {
		cfg.PayloadMetadataField = "metadata"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantClient{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_client")),
	}
}

func (c *QdrantClient) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", c.cfg.APIKey)
	}
}

func (c *QdrantClient) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *QdrantClient) documentFromPayload(payload map[string]any) Document {
	doc := Document{}
	if payload == nil {
		return doc
	}
	if v, ok := payload[c.cfg.PayloadContentField]; ok {
		if s, ok := v.(string); ok {
			doc.Content = s
		}
	}
	if v, ok := payload[c.cfg.PayloadMetadataField]; ok {
		if m, ok := v.(map[string]any); ok {
			doc.Metadata = m
		}
	}
	return doc
}

// Search 在指定集合中检索相似文档。
func (c *QdrantClient) Search(ctx context.Context, collection string, queryEmbedding []float64, topK int) ([]Document, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if topK <= 0 {
		return []Document{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	req := struct {
		Vector      []float64 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
		WithVector  bool      `json:"with_vector"`
	}{
		Vector:      queryEmbedding,
		Limit:       topK,
		WithPayload: true,
		WithVector:  false,
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := c.documentFromPayload(r.Payload)
		doc.Score = r.Score
		out = append(out, doc)
	}
	return out, nil
}

// Count 返回集合中的精确点数。
func (c *QdrantClient) Count(ctx context.Context, collection string) (int, error) {
	if strings.TrimSpace(collection) == "" {
		return 0, fmt.Errorf("qdrant collection is required")
	}

	req := struct {
		Exact bool `json:"exact"`
	}{Exact: true}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/count", url.PathEscape(collection))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// ListDocuments 通过 scroll API 拉取集合全量文档，用于构建词法索引。
func (c *QdrantClient) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	const pageSize = 256
	path := fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(collection))

	var docs []Document
	var offset any

	for {
		req := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}

		if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			docs = append(docs, c.documentFromPayload(p.Payload))
		}

		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	c.logger.Debug("qdrant scroll completed",
		zap.String("collection", collection),
		zap.Int("count", len(docs)))
	return docs, nil
}

// QdrantIndex 将 QdrantClient 绑定到单个集合，实现 VectorIndex。
type QdrantIndex struct {
	client     *QdrantClient
	collection string
}

// NewQdrantIndex 创建针对单个集合的向量索引视图。
func NewQdrantIndex(client *QdrantClient, collection string) *QdrantIndex {
	return &QdrantIndex{client: client, collection: collection}
}

// Search 以查询向量检索相似文档.
func (q *QdrantIndex) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]Document, error) {
	return q.client.Search(ctx, q.collection, queryEmbedding, topK)
}

// Count 返回索引中的文档数量.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	return q.client.Count(ctx, q.collection)
}
