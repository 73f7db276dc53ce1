package graph

import (
	"fmt"
	"strings"
	"sync"
)

// brevitySuffix 注入到旧版模板的简洁性约束。
const brevitySuffix = "\n\nAnswer in 80 words or fewer unless the question requires more detail."

// builtinTemplates 按意图内置的生成模板，{context} 与 {query} 为占位符。
var builtinTemplates = map[Intent]string{
	IntentArchetype: `You are an assistant for an investment platform. Answer the question about investment model archetypes using ONLY the context below. If the context does not contain the answer, say so.

Context:
{context}

Question: {query}

Answer:`,
	IntentPipeline: `You are an assistant for an investment platform. Answer the question about the fund pipeline using ONLY the context below. If the context does not contain the answer, say so.

Context:
{context}

Question: {query}

Answer:`,
	IntentClarity: `You are an assistant for an investment platform. Answer the question about ESG metrics and Clarity data using ONLY the context below. Quote metric definitions exactly when available.

Context:
{context}

Question: {query}

Answer:`,
	IntentGeneral: `You are an assistant for an investment platform. Answer the question using ONLY the context below. If the context does not contain the answer, say so.

Context:
{context}

Question: {query}

Answer:`,
}

// ValidateBuiltinTemplates 校验内置模板覆盖全部意图且占位符齐全。
// 启动时调用一次。
func ValidateBuiltinTemplates() error {
	for _, intent := range []Intent{IntentArchetype, IntentPipeline, IntentClarity, IntentGeneral} {
		tmpl, ok := builtinTemplates[intent]
		if !ok {
			return fmt.Errorf("missing builtin template for intent %q", intent)
		}
		if !strings.Contains(tmpl, "{context}") || !strings.Contains(tmpl, "{query}") {
			return fmt.Errorf("builtin template for intent %q missing placeholders", intent)
		}
	}
	return nil
}

// PromptRegistry 命名提示词模板注册表。
// 注册的旧版模板在载入时做占位符适配并注入简洁性约束。
type PromptRegistry struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewPromptRegistry 创建空注册表。
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{templates: make(map[string]string)}
}

// Register 注册命名模板，旧版占位符就地适配。
func (r *PromptRegistry) Register(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = AdaptLegacyTemplate(text)
}

// Load 按名称载入模板。
func (r *PromptRegistry) Load(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt template %q not found", name)
	}
	return tmpl, nil
}

// Names 返回已注册的模板名。
func (r *PromptRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for name := range r.templates {
		out = append(out, name)
	}
	return out
}

// AdaptLegacyTemplate 把旧版模板适配为当前占位符约定：
// {context_str}→{context}、{query_str}→{query}，并在缺失时追加简洁性约束。
func AdaptLegacyTemplate(text string) string {
	text = strings.ReplaceAll(text, "{context_str}", "{context}")
	text = strings.ReplaceAll(text, "{query_str}", "{query}")
	if !strings.Contains(text, "80 words") {
		text += brevitySuffix
	}
	return text
}

// BuiltinTemplate 返回意图对应的内置模板。
func BuiltinTemplate(intent Intent) string {
	if tmpl, ok := builtinTemplates[intent]; ok {
		return tmpl
	}
	return builtinTemplates[IntentGeneral]
}

// RenderTemplate 代入上下文与查询渲染模板。
func RenderTemplate(tmpl, contextBlock, query string) string {
	out := strings.ReplaceAll(tmpl, "{context}", contextBlock)
	out = strings.ReplaceAll(out, "{query}", query)
	return out
}
