package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/prism/llm"
	"github.com/BaSui01/prism/structured"
	"go.uber.org/zap"
)

// greetingPhrases 触发直答路径的寒暄短语。
var greetingPhrases = []string{
	"hello", "hi", "hey",
	"good morning", "good afternoon",
	"thanks", "thank you",
	"bye", "goodbye",
}

// ShouldRetrieve 判断查询是否需要走检索路径。
// 少于 5 个词且包含寒暄短语的查询直接回复。
func ShouldRetrieve(query string) bool {
	tokens := strings.Fields(query)
	if len(tokens) >= 5 {
		return true
	}

	lower := strings.ToLower(query)
	for _, phrase := range greetingPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// intentResult 意图分类的结构化输出。
type intentResult struct {
	Intent            string  `json:"intent"`
	DetectedArchetype string  `json:"detected_archetype,omitempty"`
	DetectedRegion    string  `json:"detected_region,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// Router 意图路由节点：LLM 结构化分类，失败时保守回退到 general。
type Router struct {
	classify *structured.Output[intentResult]
	logger   *zap.Logger
}

// NewRouter 创建意图路由器。
func NewRouter(provider llm.Provider, model string, logger *zap.Logger) (*Router, error) {
	out, err := structured.New[intentResult](provider,
		structured.WithModel(model),
		structured.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("create intent classifier: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classify: out,
		logger:   logger.With(zap.String("component", "intent_router")),
	}, nil
}

const routePrompt = `Classify the user's question about an investment platform into exactly one intent:

- "archetype": questions about investment model archetypes, their fund allocations or model composition
- "pipeline": questions about the fund pipeline, candidate funds or pipeline strategy
- "clarity": questions about ESG metrics, Clarity data or metric definitions
- "general": anything else

Also detect, when clearly present:
- "detected_archetype": the archetype the question refers to (e.g. "Integrated Best Ideas", "Impact 100%%", "Climate Sustainability", "Inclusive Innovation"), else omit
- "detected_region": "US" or "INT", else omit

Respond as JSON: {"intent": "...", "detected_archetype": "...", "detected_region": "...", "confidence": 0.0}

Question: %s`

// Route 对查询分类并把意图、原型与区域写入状态。
// 分类失败只记日志，意图落为 general。
func (r *Router) Route(ctx context.Context, state *State) {
	result, err := r.classify.Generate(ctx, fmt.Sprintf(routePrompt, state.Query))
	if err != nil {
		r.logger.Warn("intent classification failed, defaulting to general",
			zap.String("thread_id", state.ThreadID),
			zap.Error(err))
		state.Intent = IntentGeneral
		return
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(result.Intent)))
	if !ValidIntent(intent) {
		r.logger.Warn("classifier returned unknown intent, defaulting to general",
			zap.String("intent", result.Intent))
		intent = IntentGeneral
	}
	state.Intent = intent

	// 请求显式提供的原型/区域优先于检测结果。
	if state.Archetype == "" {
		state.Archetype = NormalizeArchetype(result.DetectedArchetype)
	}
	if state.Region == "" {
		state.Region = NormalizeRegion(result.DetectedRegion)
	}

	r.logger.Debug("intent routed",
		zap.String("intent", string(intent)),
		zap.String("archetype", state.Archetype),
		zap.String("region", state.Region))
}
