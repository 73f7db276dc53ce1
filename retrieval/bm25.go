package retrieval

import (
	"math"
	"sort"
	"strings"
)

// BM25 参数默认值，k1 控制词频饱和，b 控制文档长度归一。
const (
	DefaultBM25K1 = 1.5
	DefaultBM25B  = 0.75
)

// BM25Index 进程内 BM25 词法索引，按集合文档一次性构建。
// 构建后只读，可被多个查询并发使用。
type BM25Index struct {
	k1 float64
	b  float64

	documents []Document
	docTerms  []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

// NewBM25Index 从文档集构建 BM25 索引。
func NewBM25Index(docs []Document, k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = DefaultBM25K1
	}
	if b <= 0 {
		b = DefaultBM25B
	}

	idx := &BM25Index{
		k1:        k1,
		b:         b,
		documents: docs,
		docTerms:  make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}
	idx.build()
	return idx
}

// Len 返回索引中的文档数量。
func (idx *BM25Index) Len() int { return len(idx.documents) }

func (idx *BM25Index) build() {
	totalLen := 0
	termDocCount := make(map[string]int)

	for i, doc := range idx.documents {
		terms := Tokenize(doc.Content)
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		idx.docTerms[i] = freq
		idx.docLens[i] = len(terms)
		totalLen += len(terms)

		for term := range freq {
			termDocCount[term]++
		}
	}

	if len(idx.documents) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(idx.documents))
	}

	N := float64(len(idx.documents))
	for term, df := range termDocCount {
		idx.idf[term] = math.Log((N-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
}

// Search 返回按 BM25 分数降序的前 topK 个文档，零分文档不出现在结果中。
func (idx *BM25Index) Search(query string, topK int) []Document {
	if topK <= 0 || len(idx.documents) == 0 {
		return nil
	}

	queryTerms := Tokenize(query)
	var results []Document

	for i, doc := range idx.documents {
		score := 0.0
		docLen := float64(idx.docLens[i])

		for _, qTerm := range queryTerms {
			tf, ok := idx.docTerms[i][qTerm]
			if !ok {
				continue
			}
			numerator := float64(tf) * (idx.k1 + 1.0)
			denominator := float64(tf) + idx.k1*(1.0-idx.b+idx.b*(docLen/idx.avgDocLen))
			score += idx.idf[qTerm] * (numerator / denominator)
		}

		if score > 0 {
			d := doc
			d.Score = score
			results = append(results, d)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Tokenize 以空白切分并小写化，词法与语义两侧共用。
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
