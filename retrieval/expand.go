package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/prism/llm"
	"go.uber.org/zap"
)

// 扩展结果的守卫上限：超长的改写视为跑偏，丢弃。
const maxExpansionLen = 200

// intentHints 按意图注入的领域提示词，引导 LLM 朝正确的文档子集改写。
var intentHints = map[string]string{
	"archetype": "investment model archetypes, fund model allocations, model overview",
	"pipeline":  "fund pipeline, pipeline strategy, candidate funds",
	"clarity":   "ESG metrics, Clarity documentation, metric definitions",
}

// Expander 使用 LLM 对查询做领域术语扩展。
// 扩展必须包含原始查询且不超过长度上限，否则回退到原句。
type Expander struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewExpander 创建查询扩展器。
func NewExpander(provider llm.Provider, model string, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "query_expander")),
	}
}

// Expand 返回扩展后的查询。扩展失败或未通过守卫时返回带启发式后缀的原句。
func (e *Expander) Expand(ctx context.Context, query, intent, archetype, region string) string {
	expanded := query

	if e.provider != nil {
		if out, err := e.expandLLM(ctx, query, intent); err != nil {
			e.logger.Warn("query expansion failed, using original", zap.Error(err))
		} else if accepted, reason := acceptExpansion(query, out); accepted {
			expanded = out
		} else {
			e.logger.Debug("query expansion rejected", zap.String("reason", reason))
		}
	}

	// 启发式后缀与 LLM 改写独立生效。
	if archetype != "" && !strings.Contains(strings.ToLower(expanded), strings.ToLower(archetype)) {
		expanded = expanded + " " + archetype
	}
	if strings.EqualFold(region, "INT") && !strings.Contains(strings.ToLower(expanded), "international") {
		expanded = expanded + " International"
	}

	return expanded
}

func (e *Expander) expandLLM(ctx context.Context, query, intent string) (string, error) {
	hint := intentHints[intent]

	var sb strings.Builder
	sb.WriteString("Rewrite the following search query by appending a few domain-specific terms ")
	sb.WriteString("that improve document retrieval. The rewritten query MUST contain the original ")
	sb.WriteString("query text verbatim. Respond with the rewritten query only, no explanations.\n\n")
	if hint != "" {
		fmt.Fprintf(&sb, "Domain context: %s\n", hint)
	}
	fmt.Fprintf(&sb, "Query: %s", query)

	resp, err := e.provider.Completion(ctx, &llm.ChatRequest{
		Model:       e.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0,
		MaxTokens:   100,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// acceptExpansion 校验 LLM 扩展是否可用：必须包含原句（不区分大小写）
// 且不超过长度上限。
func acceptExpansion(original, expanded string) (bool, string) {
	if expanded == "" {
		return false, "empty"
	}
	if len(expanded) > maxExpansionLen {
		return false, "too_long"
	}
	if !strings.Contains(strings.ToLower(expanded), strings.ToLower(original)) {
		return false, "missing_original"
	}
	return true, ""
}
