// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// 包 feedback 收集用户对回答的评价并提供聚合统计，
// 通过 query_id 与原始查询关联。
package feedback

import (
	"errors"
	"time"
)

// Rating 用户评价。
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

const maxCommentLength = 1000

// Submission 反馈提交。
type Submission struct {
	QueryID     string `json:"query_id"`
	Rating      Rating `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	PageContext string `json:"page_context,omitempty"` // 提交反馈的页面，如 /mcs
	UserEmail   string `json:"user_email,omitempty"`
}

// Validate 校验提交内容。
func (s *Submission) Validate() error {
	if s.QueryID == "" {
		return errors.New("query_id is required")
	}
	if s.Rating != RatingPositive && s.Rating != RatingNegative {
		return errors.New("rating must be positive or negative")
	}
	if len(s.Comment) > maxCommentLength {
		return errors.New("comment exceeds 1000 characters")
	}
	return nil
}

// Record 已存储的反馈。
type Record struct {
	FeedbackID  string    `json:"feedback_id" gorm:"primaryKey;column:feedback_id"`
	QueryID     string    `json:"query_id" gorm:"column:query_id;index"`
	Rating      Rating    `json:"rating" gorm:"column:rating"`
	Comment     string    `json:"comment,omitempty" gorm:"column:comment"`
	PageContext string    `json:"page_context,omitempty" gorm:"column:page_context"`
	UserEmail   string    `json:"user_email,omitempty" gorm:"column:user_email"`
	CreatedAt   time.Time `json:"timestamp" gorm:"column:created_at"`
}

// TableName 指定表名。
func (Record) TableName() string { return "feedback" }

// RatingCounts 单维度的正负计数。
type RatingCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// CommentEntry 带评论的近期反馈。
type CommentEntry struct {
	FeedbackID  string    `json:"feedback_id"`
	Rating      Rating    `json:"rating"`
	Comment     string    `json:"comment"`
	PageContext string    `json:"page_context,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stats 聚合统计。
type Stats struct {
	Total          int                     `json:"total"`
	Positive       int                     `json:"positive"`
	Negative       int                     `json:"negative"`
	PositiveRate   float64                 `json:"positive_rate"` // 百分比，一位小数
	ByContext      map[string]RatingCounts `json:"by_context"`
	ByUser         map[string]RatingCounts `json:"by_user"`
	RecentComments []CommentEntry          `json:"recent_comments"`
}
