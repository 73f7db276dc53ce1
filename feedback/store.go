package feedback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentCommentsLimit = 10

// Store 反馈存储。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore 创建反馈存储并迁移表结构。
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate feedback table: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "feedback_store")),
	}, nil
}

// Save 保存一条反馈并返回生成的记录。
func (s *Store) Save(ctx context.Context, submission *Submission) (*Record, error) {
	if err := submission.Validate(); err != nil {
		return nil, err
	}

	record := &Record{
		FeedbackID:  "fb_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		QueryID:     submission.QueryID,
		Rating:      submission.Rating,
		Comment:     submission.Comment,
		PageContext: submission.PageContext,
		UserEmail:   submission.UserEmail,
		CreatedAt:   time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}

	s.logger.Info("feedback saved",
		zap.String("feedback_id", record.FeedbackID),
		zap.String("query_id", record.QueryID),
		zap.String("rating", string(record.Rating)))

	return record, nil
}

// ByQueryID 返回指定查询的全部反馈。
func (s *Store) ByQueryID(ctx context.Context, queryID string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("query_id = ?", queryID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stats 计算聚合统计：总量、正面占比、按页面与用户的分布、近期评论。
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	stats := &Stats{
		ByContext:      make(map[string]RatingCounts),
		ByUser:         make(map[string]RatingCounts),
		RecentComments: []CommentEntry{},
	}
	if len(records) == 0 {
		return stats, nil
	}

	for _, r := range records {
		stats.Total++
		if r.Rating == RatingPositive {
			stats.Positive++
		} else {
			stats.Negative++
		}

		bump(stats.ByContext, keyOr(r.PageContext, "unknown"), r.Rating)
		bump(stats.ByUser, keyOr(r.UserEmail, "anonymous"), r.Rating)

		if r.Comment != "" && len(stats.RecentComments) < recentCommentsLimit {
			stats.RecentComments = append(stats.RecentComments, CommentEntry{
				FeedbackID:  r.FeedbackID,
				Rating:      r.Rating,
				Comment:     r.Comment,
				PageContext: r.PageContext,
				Timestamp:   r.CreatedAt,
			})
		}
	}

	stats.PositiveRate = math.Round(float64(stats.Positive)/float64(stats.Total)*1000) / 10
	return stats, nil
}

func bump(m map[string]RatingCounts, key string, rating Rating) {
	counts := m[key]
	if rating == RatingPositive {
		counts.Positive++
	} else {
		counts.Negative++
	}
	m[key] = counts
}

func keyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
