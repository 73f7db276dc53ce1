package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunOption 配置单次管线执行。
type RunOption func(*runOptions)

type runOptions struct {
	onToken func(string)
}

// WithOnToken 启用流式生成，逐 token 回调。
func WithOnToken(fn func(string)) RunOption {
	return func(o *runOptions) { o.onToken = fn }
}

// Workflow 查询管线编排器。节点序列单向无环，单次执行。
type Workflow struct {
	router        *Router
	retriever     *Retriever
	grader        *Grader
	reranker      *Reranker
	generator     *Generator
	hallucination *HallucinationChecker // 可选
	checkpointer  Checkpointer
	logger        *zap.Logger
}

// WorkflowConfig 管线装配配置。
type WorkflowConfig struct {
	Router        *Router
	Retriever     *Retriever
	Grader        *Grader
	Reranker      *Reranker
	Generator     *Generator
	Hallucination *HallucinationChecker // nil 时跳过幻觉自检
	Checkpointer  Checkpointer
	Logger        *zap.Logger
}

// NewWorkflow 装配查询管线。
func NewWorkflow(cfg WorkflowConfig) (*Workflow, error) {
	if cfg.Router == nil || cfg.Retriever == nil || cfg.Grader == nil ||
		cfg.Reranker == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("workflow requires router, retriever, grader, reranker and generator")
	}
	if cfg.Checkpointer == nil {
		cfg.Checkpointer = NewMemorySaver(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := ValidateBuiltinTemplates(); err != nil {
		return nil, err
	}

	return &Workflow{
		router:        cfg.Router,
		retriever:     cfg.Retriever,
		grader:        cfg.Grader,
		reranker:      cfg.Reranker,
		generator:     cfg.Generator,
		hallucination: cfg.Hallucination,
		checkpointer:  cfg.Checkpointer,
		logger:        cfg.Logger.With(zap.String("component", "workflow")),
	}, nil
}

// Retriever 返回检索节点，供外部查询 domain 映射。
func (w *Workflow) Retriever() *Retriever { return w.retriever }

// Run 执行一轮查询：装载会话 → 路由 → 检索分支或直答分支 → 保存会话。
// 返回执行后的状态；只有会话装载/保存和不可恢复的管线错误才返回 error。
func (w *Workflow) Run(ctx context.Context, state *State, opts ...RunOption) (*State, error) {
	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()

	if err := w.restoreSession(ctx, state); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	state.Messages = append(state.Messages, Message{Role: "human", Content: state.Query})

	w.router.Route(ctx, state)

	if !ShouldRetrieve(state.Query) {
		w.logger.Debug("greeting detected, responding directly",
			zap.String("thread_id", state.ThreadID))
		w.generator.RespondDirectly(ctx, state, options.onToken)
	} else {
		w.retriever.Retrieve(ctx, state)
		w.grader.Grade(ctx, state)
		w.reranker.Rerank(ctx, state)
		w.generator.Generate(ctx, state, options.onToken)

		if w.hallucination != nil {
			w.hallucination.Check(ctx, state)
		}
	}

	if err := w.saveSession(ctx, state); err != nil {
		// 会话保存失败不影响已生成的回答。
		w.logger.Warn("failed to save session",
			zap.String("thread_id", state.ThreadID),
			zap.Error(err))
	}

	w.logger.Info("workflow completed",
		zap.String("thread_id", state.ThreadID),
		zap.String("intent", string(state.Intent)),
		zap.String("quality", string(state.RetrievalQuality)),
		zap.Duration("duration", time.Since(start)))

	return state, nil
}

func (w *Workflow) restoreSession(ctx context.Context, state *State) error {
	if state.ThreadID == "" {
		return nil
	}

	session, err := w.checkpointer.Load(ctx, state.ThreadID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	state.Messages = append(append([]Message(nil), session.Messages...), state.Messages...)
	state.TurnCount = session.TurnCount
	return nil
}

func (w *Workflow) saveSession(ctx context.Context, state *State) error {
	if state.ThreadID == "" {
		return nil
	}
	return w.checkpointer.Save(ctx, &Session{
		ThreadID:  state.ThreadID,
		Messages:  state.Messages,
		TurnCount: state.TurnCount,
	})
}
