package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/prism/llm"
	"go.uber.org/zap"
)

// 上下文块中单篇文档的内容上限。
const generateContentLimit = 1500

// 回答携带的引用来源上限。
const maxSources = 5

// apologyMessage 生成失败时的固定回复。
const apologyMessage = "I apologize, but I was unable to generate a response to your question. Please try again."

// emptyContextBlock 无相关文档时代入模板的上下文。
const emptyContextBlock = "No relevant documents found."

// Generator 生成节点：基于精排文档的落地回答与直答路径。
type Generator struct {
	provider llm.Provider
	model    string
	registry *PromptRegistry
	logger   *zap.Logger
}

// NewGenerator 创建生成器。registry 可为 nil（只用内置模板）。
func NewGenerator(provider llm.Provider, model string, registry *PromptRegistry, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		model:    model,
		registry: registry,
		logger:   logger.With(zap.String("component", "generator")),
	}
}

// Generate 生成落地回答，写入 Generation 与 Sources 并递增轮次。
// onToken 非 nil 时走流式生成，逐 token 回调。
func (g *Generator) Generate(ctx context.Context, state *State, onToken func(string)) {
	prompt := g.buildPrompt(state)

	answer, err := g.complete(ctx, prompt, onToken)
	if err != nil {
		g.logger.Error("generation failed, returning apology",
			zap.String("thread_id", state.ThreadID),
			zap.Error(err))
		state.Generation = apologyMessage
		state.Sources = nil
	} else {
		state.Generation = answer
		state.Sources = collectSources(state.GradedDocs)
	}

	state.Messages = append(state.Messages, Message{Role: "ai", Content: state.Generation})
	state.TurnCount++
}

// RespondDirectly 寒暄类查询的直答路径：简短回复、无来源。
func (g *Generator) RespondDirectly(ctx context.Context, state *State, onToken func(string)) {
	prompt := fmt.Sprintf(
		"You are a friendly assistant for an investment platform. Reply briefly (one or two sentences) to: %s",
		state.Query)

	answer, err := g.complete(ctx, prompt, onToken)
	if err != nil {
		g.logger.Error("direct response failed, returning apology", zap.Error(err))
		answer = apologyMessage
	}

	state.Generation = answer
	state.Sources = nil
	state.Messages = append(state.Messages, Message{Role: "ai", Content: answer})
	state.TurnCount++
}

func (g *Generator) complete(ctx context.Context, prompt string, onToken func(string)) (string, error) {
	req := &llm.ChatRequest{
		Model:    g.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	}

	if onToken == nil {
		resp, err := g.provider.Completion(ctx, req)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text()), nil
	}

	ch, err := g.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Delta.Content != "" {
			sb.WriteString(chunk.Delta.Content)
			onToken(chunk.Delta.Content)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// buildPrompt 选择模板并代入上下文块与查询。
// 显式 PromptName 优先；载入失败回退到意图内置模板。
func (g *Generator) buildPrompt(state *State) string {
	contextBlock := BuildContextBlock(state.GradedDocs)

	tmpl := ""
	if state.PromptName != "" && g.registry != nil {
		loaded, err := g.registry.Load(state.PromptName)
		if err != nil {
			g.logger.Warn("prompt template load failed, using builtin",
				zap.String("prompt_name", state.PromptName),
				zap.Error(err))
		} else {
			tmpl = loaded
		}
	}
	if tmpl == "" {
		tmpl = BuiltinTemplate(state.Intent)
	}

	return RenderTemplate(tmpl, contextBlock, state.Query)
}

// BuildContextBlock 把精排文档拼装为生成上下文：
// 每篇截断到 1500 字符，带 [Source N: file (type)] 标签，以 "---" 分隔。
func BuildContextBlock(docs []GradedDocument) string {
	if len(docs) == 0 {
		return emptyContextBlock
	}

	parts := make([]string, 0, len(docs))
	for i, gd := range docs {
		content := truncateRunes(gd.Document.Content, generateContentLimit)
		parts = append(parts, fmt.Sprintf("[Source %d: %s (%s)]\n%s",
			i+1, gd.Document.FileName(), gd.Document.DocType(), content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// truncateRunes 把 s 截断到最多 limit 个字符。限制按 rune 计数并在
// rune 边界切割，多字节字符不会被劈成无效 UTF-8。
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// collectSources 从最终文档提取引用来源，上限 5 条。
func collectSources(docs []GradedDocument) []Source {
	n := len(docs)
	if n > maxSources {
		n = maxSources
	}
	out := make([]Source, 0, n)
	for _, gd := range docs[:n] {
		out = append(out, Source{
			FileName:   gd.Document.FileName(),
			DocType:    gd.Document.DocType(),
			Confidence: gd.Confidence,
		})
	}
	return out
}
