package graph

import (
	"context"
	"fmt"

	"github.com/BaSui01/prism/llm"
	"github.com/BaSui01/prism/structured"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 评分提示中单篇文档的内容上限。
const gradeContentLimit = 2000

// 评分并发上限，防止候选集过大时打爆上游。
const gradeMaxConcurrency = 8

// gradeResult 单篇文档评分的结构化输出。
type gradeResult struct {
	Relevance  string  `json:"relevance"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Grader 相关性评分节点：对检索结果并发逐篇评分。
// 单篇失败回退为 relevant/0.5，评分阶段本身永不失败。
type Grader struct {
	grade  *structured.Output[gradeResult]
	logger *zap.Logger
}

// NewGrader 创建评分器。
func NewGrader(provider llm.Provider, model string, logger *zap.Logger) (*Grader, error) {
	out, err := structured.New[gradeResult](provider,
		structured.WithModel(model),
		structured.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("create relevance grader: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grader{
		grade:  out,
		logger: logger.With(zap.String("component", "relevance_grader")),
	}, nil
}

const gradePrompt = `Assess whether the document below is relevant to answering the user's question.

Respond as JSON: {"relevance": "relevant" or "not_relevant", "confidence": 0.0-1.0, "reasoning": "one sentence"}

Question: %s

Document:
%s`

// Grade 并发评分全部文档并汇总检索质量。
// 结果按输入位置写入切片，输出顺序与输入一致。
func (g *Grader) Grade(ctx context.Context, state *State) {
	docs := state.RetrievedDocs
	if len(docs) == 0 {
		state.GradedDocs = nil
		state.RetrievalQuality = QualityPoor
		state.NeedsFallback = true
		return
	}

	graded := make([]GradedDocument, len(docs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(gradeMaxConcurrency)

	for i, doc := range docs {
		eg.Go(func() error {
			content := truncateRunes(doc.Content, gradeContentLimit)

			result, err := g.grade.Generate(egCtx, fmt.Sprintf(gradePrompt, state.Query, content))
			if err != nil {
				// 失败的文档保守视为相关，绝不丢弃。
				g.logger.Warn("grading call failed, defaulting to relevant",
					zap.Int("doc_index", i),
					zap.Error(err))
				graded[i] = GradedDocument{Document: doc, Relevance: Relevant, Confidence: 0.5}
				return nil
			}

			rel := Relevance(result.Relevance)
			if rel != Relevant && rel != NotRelevant {
				rel = Relevant
			}
			confidence := result.Confidence
			if confidence < 0 || confidence > 1 {
				confidence = 0.5
			}

			graded[i] = GradedDocument{
				Document:   doc,
				Relevance:  rel,
				Confidence: confidence,
				Reasoning:  result.Reasoning,
			}
			return nil
		})
	}

	// goroutine 自身恢复所有错误，Wait 仅作同步点。
	_ = eg.Wait()

	state.GradedDocs = graded
	state.RetrievalQuality, state.NeedsFallback = assessQuality(graded)

	g.logger.Debug("grading completed",
		zap.Int("documents", len(graded)),
		zap.String("quality", string(state.RetrievalQuality)))
}

// assessQuality 按相关文档占比评定检索质量。
func assessQuality(graded []GradedDocument) (Quality, bool) {
	relevant := 0
	for _, gd := range graded {
		if gd.Relevance == Relevant {
			relevant++
		}
	}

	switch {
	case relevant == 0:
		return QualityPoor, true
	case relevant*2 < len(graded):
		return QualityAmbiguous, false
	default:
		return QualityGood, false
	}
}
