package graph

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

// DefaultMaxSessions 内存检查点默认保留的会话数上限。
const DefaultMaxSessions = 1000

// Session 按 thread_id 累积的会话状态。
type Session struct {
	ThreadID  string    `json:"thread_id"`
	Messages  []Message `json:"messages"`
	TurnCount int       `json:"turn_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Checkpointer 会话持久化接口。Load 未找到会话时返回 nil, nil。
type Checkpointer interface {
	Load(ctx context.Context, threadID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

// MemorySaver 进程内检查点，超过容量按最近最少使用驱逐。
type MemorySaver struct {
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*list.Element
	lru      *list.List // 队首最新
}

type memoryEntry struct {
	threadID string
	session  *Session
}

// NewMemorySaver 创建内存检查点。maxSessions <= 0 时使用默认上限。
func NewMemorySaver(maxSessions int) *MemorySaver {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemorySaver{
		maxSessions: maxSessions,
		sessions:    make(map[string]*list.Element),
		lru:         list.New(),
	}
}

// Load 读取会话并将其标记为最近使用。
func (m *MemorySaver) Load(ctx context.Context, threadID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.sessions[threadID]
	if !ok {
		return nil, nil
	}
	m.lru.MoveToFront(elem)

	// 返回副本，调用方的修改只有经 Save 才可见。
	s := elem.Value.(*memoryEntry).session
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	return &cp, nil
}

// Save 写入会话，容量满时驱逐最久未用的会话。
func (m *MemorySaver) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ThreadID == "" {
		return errors.New("session with thread id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	cp.Messages = append([]Message(nil), session.Messages...)
	cp.UpdatedAt = time.Now()

	if elem, ok := m.sessions[session.ThreadID]; ok {
		elem.Value.(*memoryEntry).session = &cp
		m.lru.MoveToFront(elem)
		return nil
	}

	if m.lru.Len() >= m.maxSessions {
		oldest := m.lru.Back()
		if oldest != nil {
			m.lru.Remove(oldest)
			delete(m.sessions, oldest.Value.(*memoryEntry).threadID)
		}
	}

	m.sessions[session.ThreadID] = m.lru.PushFront(&memoryEntry{
		threadID: session.ThreadID,
		session:  &cp,
	})
	return nil
}

// Len 返回当前保留的会话数。
func (m *MemorySaver) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// SessionRecord 会话的数据库表示。
type SessionRecord struct {
	ThreadID  string    `gorm:"primaryKey;column:thread_id"`
	Messages  string    `gorm:"column:messages"` // JSON 编码的消息数组
	TurnCount int       `gorm:"column:turn_count"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名。
func (SessionRecord) TableName() string { return "sessions" }

// GormSaver 基于 gorm 的持久化检查点。
type GormSaver struct {
	db *gorm.DB
}

// NewGormSaver 创建数据库检查点并迁移表结构。
func NewGormSaver(db *gorm.DB) (*GormSaver, error) {
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, err
	}
	return &GormSaver{db: db}, nil
}

// Load 读取会话，未找到时返回 nil, nil。
func (g *GormSaver) Load(ctx context.Context, threadID string) (*Session, error) {
	var record SessionRecord
	err := g.db.WithContext(ctx).First(&record, "thread_id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []Message
	if record.Messages != "" {
		if err := json.Unmarshal([]byte(record.Messages), &messages); err != nil {
			return nil, err
		}
	}

	return &Session{
		ThreadID:  record.ThreadID,
		Messages:  messages,
		TurnCount: record.TurnCount,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Save 写入或更新会话。
func (g *GormSaver) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ThreadID == "" {
		return errors.New("session with thread id is required")
	}

	raw, err := json.Marshal(session.Messages)
	if err != nil {
		return err
	}

	record := SessionRecord{
		ThreadID:  session.ThreadID,
		Messages:  string(raw),
		TurnCount: session.TurnCount,
		UpdatedAt: time.Now(),
	}
	return g.db.WithContext(ctx).Save(&record).Error
}
