package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document 检索单元。身份由内容哈希决定：内容相同的文档视为同一文档。
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"` // 当前查询下的检索分数
}

// Hash 返回内容的 sha256 十六进制摘要，用于融合与去重。
func (d Document) Hash() string {
	sum := sha256.Sum256([]byte(d.Content))
	return hex.EncodeToString(sum[:])
}

// FileName 从元数据中读取来源文件名，缺失时返回 "unknown"。
func (d Document) FileName() string {
	return d.metaString("file_name", "unknown")
}

// DocType 从元数据中读取文档类型，缺失时返回 "unknown"。
func (d Document) DocType() string {
	return d.metaString("doc_type", "unknown")
}

// Archetype 从元数据中读取所属原型，缺失时返回空串。
func (d Document) Archetype() string {
	return d.metaString("archetype", "")
}

// Region 从元数据中读取所属区域，缺失时返回空串。
func (d Document) Region() string {
	return d.metaString("region", "")
}

func (d Document) metaString(key, fallback string) string {
	if d.Metadata == nil {
		return fallback
	}
	if v, ok := d.Metadata[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
