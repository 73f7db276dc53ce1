package service

import "github.com/BaSui01/prism/graph"

// QueryRequest 单次查询请求。请求体在处理过程中不被修改。
type QueryRequest struct {
	Query      string         `json:"query"`
	Domain     string         `json:"domain,omitempty"`
	Archetype  string         `json:"archetype,omitempty"`
	Region     string         `json:"region,omitempty"`
	ThreadID   string         `json:"thread_id,omitempty"`
	PromptName string         `json:"prompt_name,omitempty"`
	AppContext map[string]any `json:"app_context,omitempty"`
}

// QueryResponse 查询响应。缓存命中与新鲜计算共用同一载荷形状，
// 调用方只能通过延迟区分两者。
type QueryResponse struct {
	Answer           string         `json:"answer"`
	Sources          []graph.Source `json:"sources"`
	Intent           string         `json:"intent"`
	RetrievalQuality string         `json:"retrieval_quality"`
	TurnCount        int            `json:"turn_count"`
	ThreadID         string         `json:"thread_id"`
	QueryID          string         `json:"query_id"`
}

// 流式事件类型。事件流只包含这三种。
const (
	EventToken    = "token"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent 流式查询事件。
type StreamEvent struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Answer  string         `json:"answer,omitempty"`
	Sources []graph.Source `json:"sources,omitempty"`
	Intent  string         `json:"intent,omitempty"`
}
