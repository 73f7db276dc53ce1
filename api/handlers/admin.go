package handlers

import (
	"net/http"

	"github.com/BaSui01/prism/cache"
	"github.com/BaSui01/prism/circuitbreaker"
	"go.uber.org/zap"
)

// =============================================================================
// 🔧 缓存与熔断器管理 Handler
// =============================================================================

// AdminHandler 缓存与熔断器的检查与管理接口
type AdminHandler struct {
	cache    cache.ResponseCache
	breakers *circuitbreaker.Registry
	logger   *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(responseCache cache.ResponseCache, breakers *circuitbreaker.Registry, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{cache: responseCache, breakers: breakers, logger: logger}
}

// HandleCacheStats 返回缓存命中统计
// @Router /api/v2/cache/stats [get]
func (h *AdminHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.cache.Stats(r.Context()))
}

// HandleCacheInvalidate 清空全部缓存条目
// @Router /api/v2/cache/invalidate [post]
func (h *AdminHandler) HandleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Invalidate(r.Context()); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.logger.Info("response cache invalidated")
	WriteSuccess(w, map[string]string{"message": "cache invalidated"})
}

// HandleBreakers 返回全部熔断器状态
// @Router /api/v2/breakers [get]
func (h *AdminHandler) HandleBreakers(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.breakers.StatusAll())
}

// HandleBreakerReset 手动恢复命名熔断器到关闭状态
// @Router /api/v2/breakers/{name}/reset [post]
func (h *AdminHandler) HandleBreakerReset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid_request", "breaker name is required", h.logger)
		return
	}

	if err := h.breakers.Reset(name); err != nil {
		WriteErrorMessage(w, http.StatusNotFound, "not_found", err.Error(), h.logger)
		return
	}

	h.logger.Info("circuit breaker reset", zap.String("breaker", name))
	WriteSuccess(w, map[string]string{"message": "breaker reset", "name": name})
}
