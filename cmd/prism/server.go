package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/prism/api/handlers"
	"github.com/BaSui01/prism/cache"
	"github.com/BaSui01/prism/circuitbreaker"
	"github.com/BaSui01/prism/config"
	"github.com/BaSui01/prism/embedding"
	"github.com/BaSui01/prism/feedback"
	"github.com/BaSui01/prism/graph"
	"github.com/BaSui01/prism/internal/metrics"
	"github.com/BaSui01/prism/internal/server"
	"github.com/BaSui01/prism/internal/telemetry"
	"github.com/BaSui01/prism/llm/openaicompat"
	"github.com/BaSui01/prism/rerank"
	"github.com/BaSui01/prism/retrieval"
	"github.com/BaSui01/prism/service"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Prism 的主服务器，持有装配完成的查询管线及其基础设施。
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager *server.Manager

	// Handlers
	queryHandler    *handlers.QueryHandler
	adminHandler    *handlers.AdminHandler
	feedbackHandler *handlers.FeedbackHandler
	healthHandler   *handlers.HealthHandler

	// 基础设施
	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers
	redisClient      *redis.Client

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 装配查询管线与所有依赖。db 为 nil 时会话保存在内存中，
// 反馈接口不注册。
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, db *gorm.DB) (*Server, error) {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}

	s.metricsCollector = metrics.NewCollector("prism", logger)

	if err := s.initPipeline(db); err != nil {
		return nil, err
	}

	return s, nil
}

// =============================================================================
// 🔧 管线装配
// =============================================================================

// initPipeline 构建 LLM Provider、检索栈、管线节点、缓存与熔断器，
// 并初始化所有 handlers。
func (s *Server) initPipeline(db *gorm.DB) error {
	cfg := s.cfg

	// LLM Provider（路由/评分与生成共用一个 OpenAI 兼容客户端）
	provider := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.LLM.Provider,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
		JSONMode:     cfg.LLM.JSONMode,
		Recorder:     s.metricsCollector,
	}, s.logger)

	// Embedding Provider（未单独配置 Key 时复用 LLM 的）
	embKey := cfg.Embedding.APIKey
	if embKey == "" {
		embKey = cfg.LLM.APIKey
	}
	embedder := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:     embKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})

	// Rerank Provider
	var rerankProvider rerank.Provider
	if cfg.Rerank.Enabled {
		rerankProvider = rerank.NewCohereProvider(rerank.CohereConfig{
			APIKey:  cfg.Rerank.APIKey,
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: cfg.Rerank.Timeout,
		})
	} else {
		rerankProvider = rerank.NewNoopProvider()
	}

	// 检索栈：Qdrant 客户端同时充当向量索引与 BM25 文档源
	qdrant := retrieval.NewQdrantClient(retrieval.QdrantConfig{
		Host:    cfg.Qdrant.Host,
		Port:    cfg.Qdrant.Port,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: cfg.Qdrant.Timeout,
	}, s.logger)

	indexFor := func(collection string) retrieval.VectorIndex {
		return retrieval.NewQdrantIndex(qdrant, collection)
	}

	hybridCfg := retrieval.DefaultHybridConfig()
	hybridCfg.LexicalWeight = cfg.Retrieval.LexicalWeight
	hybridCfg.SemanticWeight = cfg.Retrieval.SemanticWeight
	hybridCfg.TopK = cfg.Retrieval.TopK

	registry := retrieval.NewRegistry(hybridCfg, qdrant, indexFor, embedder, s.logger)
	expander := retrieval.NewExpander(provider, cfg.LLM.RoutingModel, s.logger)

	// 管线节点
	router, err := graph.NewRouter(provider, cfg.LLM.RoutingModel, s.logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	grader, err := graph.NewGrader(provider, cfg.LLM.RoutingModel, s.logger)
	if err != nil {
		return fmt.Errorf("create grader: %w", err)
	}
	retrieverNode := graph.NewRetriever(registry, expander, cfg.Retrieval.Domains, s.logger)
	rerankerNode := graph.NewReranker(rerankProvider, s.logger)
	generator := graph.NewGenerator(provider, cfg.LLM.Model, graph.NewPromptRegistry(), s.logger)

	// 会话存储：数据库可用时持久化，否则进程内 LRU
	var checkpointer graph.Checkpointer
	if db != nil {
		saver, err := graph.NewGormSaver(db)
		if err != nil {
			return fmt.Errorf("create session saver: %w", err)
		}
		checkpointer = saver
	} else {
		checkpointer = graph.NewMemorySaver(0)
	}

	workflow, err := graph.NewWorkflow(graph.WorkflowConfig{
		Router:       router,
		Retriever:    retrieverNode,
		Grader:       grader,
		Reranker:     rerankerNode,
		Generator:    generator,
		Checkpointer: checkpointer,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	// 降级引擎：单轮向量检索 + 通用模板生成
	fallback := service.NewFallbackEngine(
		embedder, indexFor, cfg.Retrieval.Domains,
		provider, cfg.LLM.Model, s.logger,
	)

	// 响应缓存
	responseCache, err := s.buildCache()
	if err != nil {
		return fmt.Errorf("create response cache: %w", err)
	}

	// 熔断器注册表，状态变更计入指标
	breakers := circuitbreaker.NewRegistry(&circuitbreaker.Config{
		Threshold:         cfg.Breaker.Threshold,
		ResetTimeout:      cfg.Breaker.ResetTimeout,
		HalfOpenSuccesses: cfg.Breaker.HalfOpenSuccesses,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			s.metricsCollector.RecordBreakerTransition(name, from.String(), to.String())
		},
	}, s.logger)

	svc, err := service.NewQueryService(workflow, fallback, responseCache, breakers, s.metricsCollector, s.logger)
	if err != nil {
		return fmt.Errorf("create query service: %w", err)
	}

	// Handlers
	s.queryHandler = handlers.NewQueryHandler(svc, s.logger)
	s.adminHandler = handlers.NewAdminHandler(responseCache, breakers, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if db != nil {
		store, err := feedback.NewStore(db, s.logger)
		if err != nil {
			return fmt.Errorf("create feedback store: %w", err)
		}
		s.feedbackHandler = handlers.NewFeedbackHandler(store, s.logger)
	}

	return nil
}

// buildCache 根据配置选择缓存后端。
func (s *Server) buildCache() (cache.ResponseCache, error) {
	cfg := s.cfg
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		s.redisClient = client
		return cache.NewRedisCache(client, cfg.Cache.TTL, s.logger), nil
	case "local":
		return cache.NewLocalCache(cache.LocalConfig{
			MaxSize: cfg.Cache.MaxSize,
			TTL:     cfg.Cache.TTL,
		}, s.logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 注册路由并启动 HTTP 服务器。
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// 健康与版本端点
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("GET /api/v2/health", s.queryHandler.HandleHealth)

	// 查询端点
	mux.HandleFunc("POST /api/v2/query", s.queryHandler.HandleQuery)
	mux.HandleFunc("POST /api/v2/query/stream", s.queryHandler.HandleStream)
	mux.HandleFunc("GET /api/v2/domains", s.queryHandler.HandleDomains)

	// 管理端点
	mux.HandleFunc("GET /api/v2/cache/stats", s.adminHandler.HandleCacheStats)
	mux.HandleFunc("POST /api/v2/cache/invalidate", s.adminHandler.HandleCacheInvalidate)
	mux.HandleFunc("GET /api/v2/breakers", s.adminHandler.HandleBreakers)
	mux.HandleFunc("POST /api/v2/breakers/{name}/reset", s.adminHandler.HandleBreakerReset)

	// 反馈端点（需要数据库）
	if s.feedbackHandler != nil {
		mux.HandleFunc("POST /api/v2/feedback", s.feedbackHandler.HandleSubmit)
		mux.HandleFunc("GET /api/v2/feedback/stats", s.feedbackHandler.HandleStats)
		s.logger.Info("Feedback routes registered")
	}

	// Prometheus 指标
	mux.Handle("GET /metrics", promhttp.Handler())

	// 中间件链
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭。
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Redis 连接
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}

	// 4. 刷新遥测数据
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
