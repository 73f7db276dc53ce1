// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package structured 在 llm.Provider 之上构建类型安全的 JSON 输出。
// 提供者支持原生 JSON 模式时走 response_format=json_object，
// 否则退化为提示词约束加 JSON 提取。
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/prism/llm"
)

// Output 是通用结构化输出处理器，从 LLM 响应中解析出类型 T。
type Output[T any] struct {
	provider    llm.Provider
	model       string
	temperature float32
	maxTokens   int
}

// Option 配置 Output 的可选参数。
type Option func(*options)

type options struct {
	model       string
	temperature float32
	maxTokens   int
}

// WithModel 指定请求使用的模型。
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTemperature 指定采样温度。
func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = t }
}

// WithMaxTokens 指定最大输出 token.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// New 为类型 T 创建结构化输出处理器。
func New[T any](provider llm.Provider, opts ...Option) (*Output[T], error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Output[T]{
		provider:    provider,
		model:       o.model,
		temperature: o.temperature,
		maxTokens:   o.maxTokens,
	}, nil
}

// Generate 从单条提示词生成结构化输出。
func (s *Output[T]) Generate(ctx context.Context, prompt string) (*T, error) {
	return s.GenerateWithMessages(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
}

// GenerateWithMessages 从消息列表生成结构化输出。
// 提供者支持原生 JSON 模式时使用 response_format，否则回退到提示词约束。
func (s *Output[T]) GenerateWithMessages(ctx context.Context, messages []llm.Message) (*T, error) {
	req := &llm.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	if s.provider.SupportsJSONMode() {
		req.ResponseFormat = &llm.ResponseFormat{Type: "json_object"}
	} else {
		systemMsg := llm.Message{
			Role:    llm.RoleSystem,
			Content: jsonOnlyInstruction,
		}
		req.Messages = append([]llm.Message{systemMsg}, messages...)
	}

	resp, err := s.provider.Completion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	raw := resp.Choices[0].Message.Content
	return s.Parse(raw)
}

const jsonOnlyInstruction = "You must respond with a single valid JSON object. " +
	"Do NOT include any text before or after the JSON. " +
	"Do NOT wrap the JSON in markdown code blocks."

// Parse 从 LLM 原始响应中提取并解析 JSON。
func (s *Output[T]) Parse(raw string) (*T, error) {
	jsonStr := ExtractJSON(raw)

	var value T
	if err := json.Unmarshal([]byte(jsonStr), &value); err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrMalformedOutput,
			Message:  fmt.Sprintf("failed to parse structured output: %v", err),
			Provider: s.provider.Name(),
		}
	}
	return &value, nil
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON 从可能包含 markdown 代码块或附加文字的响应中提取 JSON。
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		matches := codeBlockRe.FindStringSubmatch(response)
		if len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}

	// 对象边界优先于数组边界
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}

	start = strings.Index(response, "[")
	end = strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		return response[start : end+1]
	}

	return response
}
