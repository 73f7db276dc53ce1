package handlers

import (
	"net/http"

	"github.com/BaSui01/prism/feedback"
	"go.uber.org/zap"
)

// =============================================================================
// 👍 反馈 Handler
// =============================================================================

// FeedbackHandler 反馈收集处理器
type FeedbackHandler struct {
	store  *feedback.Store
	logger *zap.Logger
}

// NewFeedbackHandler 创建反馈处理器
func NewFeedbackHandler(store *feedback.Store, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackHandler{store: store, logger: logger}
}

// FeedbackResponse 反馈提交响应
type FeedbackResponse struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedback_id"`
	Message    string `json:"message"`
}

// HandleSubmit 提交一条反馈
// @Router /api/v2/feedback [post]
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var submission feedback.Submission
	if err := DecodeJSONBody(w, r, &submission, h.logger); err != nil {
		return
	}

	record, err := h.store.Save(r.Context(), &submission)
	if err != nil {
		if vErr := submission.Validate(); vErr != nil {
			WriteErrorMessage(w, http.StatusBadRequest, "invalid_request", vErr.Error(), h.logger)
			return
		}
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, FeedbackResponse{
		Success:    true,
		FeedbackID: record.FeedbackID,
		Message:    "Thank you for your feedback!",
	})
}

// HandleStats 返回聚合反馈统计
// @Router /api/v2/feedback/stats [get]
func (h *FeedbackHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, stats)
}
