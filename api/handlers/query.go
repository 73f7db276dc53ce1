package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/prism/service"
	"go.uber.org/zap"
)

// =============================================================================
// 🔍 查询 Handler
// =============================================================================

// QueryHandler 查询接口处理器
type QueryHandler struct {
	svc    *service.QueryService
	logger *zap.Logger
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(svc *service.QueryService, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{svc: svc, logger: logger}
}

// HandleQuery 处理查询请求
// @Router /api/v2/query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req service.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid_request", "query is required", h.logger)
		return
	}

	start := time.Now()
	resp, err := h.svc.Query(r.Context(), &req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("query served",
		zap.String("query_id", resp.QueryID),
		zap.String("intent", resp.Intent),
		zap.String("retrieval_quality", resp.RetrievalQuality),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, resp)
}

// HandleStream 处理流式查询请求。回答以 SSE 推送，事件流只含
// token、complete、error 三种事件。
// @Router /api/v2/query/stream [post]
func (h *QueryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var req service.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid_request", "query is required", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, "internal_error", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	err := h.svc.Stream(r.Context(), &req, func(ev service.StreamEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode stream event", zap.Error(err))
			return
		}
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	})
	if err != nil {
		// 错误事件已作为流的收尾送出。
		h.logger.Error("streaming query failed", zap.Error(err))
	}
}

// HandleDomains 返回配置的 domain → collection 映射
// @Router /api/v2/domains [get]
func (h *QueryHandler) HandleDomains(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{
		"domains": h.svc.Workflow().Retriever().Collections(),
	})
}

// HandleHealth 返回管线各特性的健康状态
// @Router /api/v2/health [get]
func (h *QueryHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"features": map[string]bool{
			"hybrid_retrieval": true,
			"crag_grading":     true,
			"self_rag":         true,
			"memory":           true,
		},
		"timestamp": time.Now(),
	})
}
