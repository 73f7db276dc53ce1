package retrieval

import "strings"

// priorityDocTypes 按意图划分的优先文档类型。
var priorityDocTypes = map[string]map[string]bool{
	"archetype": {
		"fund_model_allocation": true,
		"fund_profile":          true,
		"model_overview":        true,
	},
	"pipeline": {
		"pipeline_strategy": true,
		"fund_pipeline":     true,
	},
	"clarity": {
		"esg_metric":            true,
		"clarity_documentation": true,
		"metric_definition":     true,
	},
}

// PriorityReorder 按意图做三级稳定重排：
//
//  1. 优先文档类型且原型/区域匹配的文档
//  2. 优先文档类型但原型/区域不匹配的文档
//  3. 其余文档
//
// 每级内部保持输入相对顺序。未知意图或无优先类型时原样返回。
func PriorityReorder(docs []Document, intent, archetype, region string) []Document {
	types, ok := priorityDocTypes[intent]
	if !ok || len(types) == 0 {
		return docs
	}

	var matched, typeOnly, rest []Document
	for _, doc := range docs {
		if !types[doc.DocType()] {
			rest = append(rest, doc)
			continue
		}
		if contextMatches(doc, archetype, region) {
			matched = append(matched, doc)
		} else {
			typeOnly = append(typeOnly, doc)
		}
	}

	out := make([]Document, 0, len(docs))
	out = append(out, matched...)
	out = append(out, typeOnly...)
	out = append(out, rest...)
	return out
}

// contextMatches 检查文档的原型与区域是否与查询上下文一致。
// 未指定的上下文维度视为匹配。
func contextMatches(doc Document, archetype, region string) bool {
	if archetype != "" {
		docArch := doc.Archetype()
		if docArch != "" && !strings.EqualFold(docArch, archetype) {
			return false
		}
	}
	if region != "" {
		docRegion := doc.Region()
		if docRegion != "" && !strings.EqualFold(docRegion, region) {
			return false
		}
	}
	return true
}
