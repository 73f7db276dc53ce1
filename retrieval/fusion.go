package retrieval

import "sort"

// RRFConstant 是 Reciprocal Rank Fusion 的平滑常数。
const RRFConstant = 60.0

// RankedList 一路检索的有序结果及其融合权重。
type RankedList struct {
	Documents []Document
	Weight    float64
}

// FuseRRF 按加权 RRF 融合多路有序结果：
//
//	score(doc) = Σ weight / (rank + 1 + c)
//
// 文档身份为内容哈希，同一文档在多路中的贡献累加。
// 返回按融合分数降序的去重结果，分数写入 Document.Score。
func FuseRRF(lists []RankedList, c float64) []Document {
	if c <= 0 {
		c = RRFConstant
	}

	scores := make(map[string]float64)
	byHash := make(map[string]Document)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, doc := range list.Documents {
			h := doc.Hash()
			if _, seen := scores[h]; !seen {
				byHash[h] = doc
				order = append(order, h)
			}
			scores[h] += list.Weight / (float64(rank) + 1.0 + c)
		}
	}

	fused := make([]Document, 0, len(order))
	for _, h := range order {
		doc := byHash[h]
		doc.Score = scores[h]
		fused = append(fused, doc)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
