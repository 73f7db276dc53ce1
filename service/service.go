package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/prism/cache"
	"github.com/BaSui01/prism/circuitbreaker"
	"github.com/BaSui01/prism/graph"
	"github.com/BaSui01/prism/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowBreaker 守护管线依赖的熔断器名称。
const WorkflowBreaker = "workflow"

// QueryService 查询服务：缓存、熔断与降级围绕管线的编排层。
type QueryService struct {
	workflow *graph.Workflow
	fallback *FallbackEngine
	cache    cache.ResponseCache
	breakers *circuitbreaker.Registry
	metrics  *metrics.Collector // 可为 nil
	logger   *zap.Logger
}

// NewQueryService 创建查询服务。collector 为 nil 时不记录指标。
func NewQueryService(
	workflow *graph.Workflow,
	fallback *FallbackEngine,
	responseCache cache.ResponseCache,
	breakers *circuitbreaker.Registry,
	collector *metrics.Collector,
	logger *zap.Logger,
) (*QueryService, error) {
	if workflow == nil || fallback == nil || responseCache == nil || breakers == nil {
		return nil, errors.New("query service requires workflow, fallback, cache and breaker registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		workflow: workflow,
		fallback: fallback,
		cache:    responseCache,
		breakers: breakers,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "query_service")),
	}, nil
}

// Workflow 返回底层管线，供健康检查等只读用途。
func (s *QueryService) Workflow() *graph.Workflow { return s.workflow }

// Query 处理一次查询。缓存命中直接返回原载荷；熔断打开或管线失败
// 走降级路径；降级也失败才返回错误。
func (s *QueryService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	return s.query(ctx, req, nil)
}

// Stream 处理一次流式查询，事件依次经 onEvent 回调送出。
// 事件流以 complete 或 error 收尾。
func (s *QueryService) Stream(ctx context.Context, req *QueryRequest, onEvent func(StreamEvent)) error {
	resp, err := s.query(ctx, req, func(token string) {
		onEvent(StreamEvent{Type: EventToken, Content: token})
	})
	if err != nil {
		onEvent(StreamEvent{Type: EventError, Content: err.Error()})
		return err
	}

	onEvent(StreamEvent{
		Type:    EventComplete,
		Answer:  resp.Answer,
		Sources: resp.Sources,
		Intent:  resp.Intent,
	})
	return nil
}

func (s *QueryService) query(ctx context.Context, req *QueryRequest, onToken func(string)) (*QueryResponse, error) {
	if req == nil || req.Query == "" {
		return nil, errors.New("query text is required")
	}

	started := time.Now()

	if cached := s.cacheGet(ctx, req); cached != nil {
		s.recordQuery(cached.Intent, cached.RetrievalQuality, servedByCache, started)
		return cached, nil
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	breaker := s.breakers.Get(WorkflowBreaker)
	if err := breaker.Allow(); err != nil {
		s.logger.Warn("workflow circuit open, serving fallback",
			zap.String("thread_id", threadID))
		return s.serveFallback(ctx, req, threadID, started, onToken)
	}

	state := &graph.State{
		Query:      BuildContextualQuery(req.Query, req.AppContext),
		Domain:     req.Domain,
		Archetype:  graph.NormalizeArchetype(req.Archetype),
		Region:     graph.NormalizeRegion(req.Region),
		ThreadID:   threadID,
		PromptName: req.PromptName,
		AppContext: req.AppContext,
	}

	var opts []graph.RunOption
	if onToken != nil {
		opts = append(opts, graph.WithOnToken(onToken))
	}

	result, err := s.workflow.Run(ctx, state, opts...)
	if err != nil {
		breaker.RecordFailure()
		s.logger.Error("workflow failed, serving fallback",
			zap.String("thread_id", threadID),
			zap.Error(err))
		return s.serveFallback(ctx, req, threadID, started, onToken)
	}
	breaker.RecordSuccess()

	resp := &QueryResponse{
		Answer:           result.Generation,
		Sources:          result.Sources,
		Intent:           string(result.Intent),
		RetrievalQuality: string(result.RetrievalQuality),
		TurnCount:        result.TurnCount,
		ThreadID:         threadID,
		QueryID:          queryID(threadID),
	}
	if resp.Sources == nil {
		resp.Sources = []graph.Source{}
	}

	s.cacheSet(ctx, req, resp)
	s.recordQuery(resp.Intent, resp.RetrievalQuality, servedByWorkflow, started)
	return resp, nil
}

func (s *QueryService) serveFallback(ctx context.Context, req *QueryRequest, threadID string, started time.Time, onToken func(string)) (*QueryResponse, error) {
	answer, sources, err := s.fallback.Query(ctx, BuildContextualQuery(req.Query, req.AppContext), req.Domain)
	if err != nil {
		return nil, fmt.Errorf("query failed and fallback unavailable: %w", err)
	}

	// 降级生成不走流式管线，整段回答作为单个 token 事件送出。
	if onToken != nil {
		onToken(answer)
	}

	if sources == nil {
		sources = []graph.Source{}
	}
	s.recordQuery(string(graph.IntentGeneral), "unknown", servedByFallback, started)
	return &QueryResponse{
		Answer:           answer,
		Sources:          sources,
		Intent:           string(graph.IntentGeneral),
		RetrievalQuality: "unknown",
		TurnCount:        1,
		ThreadID:         threadID,
		QueryID:          queryID(threadID),
	}, nil
}

func (s *QueryService) cacheGet(ctx context.Context, req *QueryRequest) *QueryResponse {
	payload, err := s.cache.Get(ctx, req.Query, req.Domain, req.PromptName, req.AppContext)
	if err != nil {
		s.recordCacheMiss()
		return nil
	}

	var resp QueryResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Warn("corrupt cache payload, ignoring", zap.Error(err))
		s.recordCacheMiss()
		return nil
	}
	s.recordCacheHit()
	return &resp
}

func (s *QueryService) cacheSet(ctx context.Context, req *QueryRequest, resp *QueryResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to encode response for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, req.Query, req.Domain, req.PromptName, req.AppContext, payload); err != nil {
		s.logger.Warn("failed to cache response", zap.Error(err))
	}
}

// served_by 标签值，对应响应的三条产出路径。
const (
	servedByCache    = "cache"
	servedByWorkflow = "workflow"
	servedByFallback = "fallback"

	responseCacheType = "response"
)

func (s *QueryService) recordQuery(intent, quality, servedBy string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordQuery(intent, quality, servedBy, time.Since(started))
}

func (s *QueryService) recordCacheHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(responseCacheType)
	}
}

func (s *QueryService) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(responseCacheType)
	}
}

// queryID 返回线程 ID 的前 8 位，用于把反馈关联到具体查询。
func queryID(threadID string) string {
	if len(threadID) < 8 {
		return threadID
	}
	return threadID[:8]
}
