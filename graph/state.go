package graph

import (
	"strings"

	"github.com/BaSui01/prism/retrieval"
)

// Intent 查询意图分类。
type Intent string

const (
	IntentArchetype Intent = "archetype" // 投资模型原型相关
	IntentPipeline  Intent = "pipeline"  // 基金储备管线相关
	IntentClarity   Intent = "clarity"   // ESG / Clarity 指标相关
	IntentGeneral   Intent = "general"   // 其他
)

// ValidIntent 检查意图是否属于闭合枚举。
func ValidIntent(i Intent) bool {
	switch i {
	case IntentArchetype, IntentPipeline, IntentClarity, IntentGeneral:
		return true
	}
	return false
}

// Quality 检索质量评级。
type Quality string

const (
	QualityGood      Quality = "good"
	QualityAmbiguous Quality = "ambiguous"
	QualityPoor      Quality = "poor"
)

// Relevance 文档相关性判定。
type Relevance string

const (
	Relevant    Relevance = "relevant"
	NotRelevant Relevance = "not_relevant"
)

// GradedDocument 带评分的检索文档。
type GradedDocument struct {
	Document   retrieval.Document `json:"document"`
	Relevance  Relevance          `json:"relevance"`
	Confidence float64            `json:"confidence"` // [0,1]
	Reasoning  string             `json:"reasoning,omitempty"`
}

// Grounding 幻觉自检结论。
type Grounding string

const (
	Grounded    Grounding = "grounded"
	NotGrounded Grounding = "not_grounded"
	Uncertain   Grounding = "uncertain"
)

// Message 会话消息。
type Message struct {
	Role    string `json:"role"` // human | ai
	Content string `json:"content"`
}

// Source 回答的引用来源。
type Source struct {
	FileName   string  `json:"file_name"`
	DocType    string  `json:"doc_type"`
	Confidence float64 `json:"confidence"`
}

// State 管线状态，单次查询内在节点间原地传递。
// Messages 只追加，历史由 Checkpointer 跨轮次保持。
type State struct {
	ThreadID   string         `json:"thread_id"`
	Messages   []Message      `json:"messages"`
	Query      string         `json:"query"`
	Domain     string         `json:"domain"`
	Archetype  string         `json:"archetype,omitempty"`
	Region     string         `json:"region,omitempty"`
	PromptName string         `json:"prompt_name,omitempty"`
	AppContext map[string]any `json:"app_context,omitempty"`

	Intent           Intent               `json:"intent,omitempty"`
	RetrievedDocs    []retrieval.Document `json:"retrieved_docs,omitempty"`
	GradedDocs       []GradedDocument     `json:"graded_docs,omitempty"`
	RetrievalQuality Quality              `json:"retrieval_quality,omitempty"`
	NeedsFallback    bool                 `json:"needs_fallback,omitempty"`

	Generation         string    `json:"generation,omitempty"`
	Sources            []Source  `json:"sources,omitempty"`
	HallucinationCheck Grounding `json:"hallucination_check,omitempty"`

	TurnCount int `json:"turn_count"`
}

// archetypeAliases 把 LLM 识别出的原型别名归一到规范名。
var archetypeAliases = map[string]string{
	"ibi":                    "Integrated Best Ideas",
	"integrated":             "Integrated Best Ideas",
	"integrated best ideas":  "Integrated Best Ideas",
	"impact":                 "Impact 100%",
	"impact 100":             "Impact 100%",
	"impact 100%":            "Impact 100%",
	"climate":                "Climate Sustainability",
	"climate sustainability": "Climate Sustainability",
	"inclusive":              "Inclusive Innovation",
	"inclusive innovation":   "Inclusive Innovation",
}

// NormalizeArchetype 把原型别名归一为规范名称，未知别名原样返回。
func NormalizeArchetype(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := archetypeAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// NormalizeRegion 把区域归一为 US / INT，其余置空。
func NormalizeRegion(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "US":
		return "US"
	case "INT", "INTERNATIONAL":
		return "INT"
	}
	return ""
}
