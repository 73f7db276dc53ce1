package feedback

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewStore(db, zap.NewNop())
	require.NoError(t, err)
	return store
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestSubmission_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		submission Submission
		wantErr    bool
	}{
		{"valid positive", Submission{QueryID: "q1", Rating: RatingPositive}, false},
		{"valid with comment", Submission{QueryID: "q1", Rating: RatingNegative, Comment: "too vague"}, false},
		{"missing query id", Submission{Rating: RatingPositive}, true},
		{"bad rating", Submission{QueryID: "q1", Rating: "meh"}, true},
		{"comment too long", Submission{QueryID: "q1", Rating: RatingPositive,
			Comment: strings.Repeat("x", 1001)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.submission.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Save / ByQueryID
// ---------------------------------------------------------------------------

func TestStore_SaveAndFetch(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.Save(ctx, &Submission{
		QueryID:     "abc12345",
		Rating:      RatingPositive,
		Comment:     "helpful explanation",
		PageContext: "/mcs",
		UserEmail:   "analyst@example.com",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(record.FeedbackID, "fb_"))
	assert.Len(t, record.FeedbackID, 15)
	assert.False(t, record.CreatedAt.IsZero())

	got, err := store.ByQueryID(ctx, "abc12345")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, record.FeedbackID, got[0].FeedbackID)
	assert.Equal(t, RatingPositive, got[0].Rating)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Save(context.Background(), &Submission{Rating: RatingPositive})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestStore_StatsEmpty(t *testing.T) {
	t.Parallel()

	stats, err := newTestStore(t).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.PositiveRate)
	assert.Empty(t, stats.RecentComments)
}

func TestStore_StatsAggregation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	submissions := []Submission{
		{QueryID: "q1", Rating: RatingPositive, PageContext: "/mcs", UserEmail: "a@example.com"},
		{QueryID: "q2", Rating: RatingPositive, PageContext: "/mcs", Comment: "clear numbers"},
		{QueryID: "q3", Rating: RatingNegative, PageContext: "/risk", UserEmail: "a@example.com", Comment: "misread the benchmark"},
	}
	for i := range submissions {
		_, err := store.Save(ctx, &submissions[i])
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.InDelta(t, 66.7, stats.PositiveRate, 0.01)

	assert.Equal(t, RatingCounts{Positive: 2}, stats.ByContext["/mcs"])
	assert.Equal(t, RatingCounts{Negative: 1}, stats.ByContext["/risk"])
	assert.Equal(t, RatingCounts{Positive: 1, Negative: 1}, stats.ByUser["a@example.com"])
	assert.Equal(t, RatingCounts{Positive: 1}, stats.ByUser["anonymous"])

	// 只有带评论的反馈进入近期评论。
	assert.Len(t, stats.RecentComments, 2)
}

func TestStore_RecentCommentsCappedAtTen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := store.Save(ctx, &Submission{
			QueryID: fmt.Sprintf("q%d", i),
			Rating:  RatingPositive,
			Comment: fmt.Sprintf("comment %d", i),
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.RecentComments, 10)
}
