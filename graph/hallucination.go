package graph

import (
	"context"
	"fmt"

	"github.com/BaSui01/prism/llm"
	"github.com/BaSui01/prism/structured"
	"go.uber.org/zap"
)

// hallucinationDisclaimer 附加在未落地回答末尾的声明。
const hallucinationDisclaimer = "\n\nNote: parts of this answer could not be verified against the source documents."

// hallucinationResult 幻觉自检的结构化输出。
type hallucinationResult struct {
	Grounding string `json:"grounding"`
	Reasoning string `json:"reasoning,omitempty"`
}

// HallucinationChecker 幻觉自检节点：零温度判定回答是否落地于上下文。
// 可选的终端扩展，默认管线不启用。
type HallucinationChecker struct {
	check  *structured.Output[hallucinationResult]
	logger *zap.Logger
}

// NewHallucinationChecker 创建幻觉自检器。
func NewHallucinationChecker(provider llm.Provider, model string, logger *zap.Logger) (*HallucinationChecker, error) {
	out, err := structured.New[hallucinationResult](provider,
		structured.WithModel(model),
		structured.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("create hallucination checker: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HallucinationChecker{
		check:  out,
		logger: logger.With(zap.String("component", "hallucination_checker")),
	}, nil
}

const hallucinationPrompt = `Determine whether the answer below is fully supported by the provided context.

Respond as JSON: {"grounding": "grounded" or "not_grounded" or "uncertain", "reasoning": "one sentence"}

Context:
%s

Answer:
%s`

// Check 判定回答落地性。not_grounded 时在回答末尾追加声明；
// 自检失败落为 uncertain，回答不动。
func (h *HallucinationChecker) Check(ctx context.Context, state *State) {
	contextBlock := BuildContextBlock(state.GradedDocs)

	result, err := h.check.Generate(ctx, fmt.Sprintf(hallucinationPrompt, contextBlock, state.Generation))
	if err != nil {
		h.logger.Warn("hallucination check failed, marking uncertain", zap.Error(err))
		state.HallucinationCheck = Uncertain
		return
	}

	switch Grounding(result.Grounding) {
	case Grounded:
		state.HallucinationCheck = Grounded
	case NotGrounded:
		state.HallucinationCheck = NotGrounded
		state.Generation += hallucinationDisclaimer
	default:
		state.HallucinationCheck = Uncertain
	}

	h.logger.Debug("hallucination check completed",
		zap.String("grounding", string(state.HallucinationCheck)))
}
