// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionStatus 是问卷会话的状态。
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Valid 判断状态是否为已知取值。
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// User 对应 users 表，一个聊天地址（手机号）对应一个用户。
type User struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PhoneNumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"phoneNumber"`
	Name        string    `gorm:"type:varchar(100)" json:"name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// QuizSession 对应 quiz_sessions 表，记录一个用户的一次答题过程。
// 会话永不删除，只做状态迁移。
type QuizSession struct {
	ID     uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint          `gorm:"index;not null" json:"userId"`
	Status SessionStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	// CurrentQuestion 取值 1..N+1，完成后为 N+1。
	CurrentQuestion int `gorm:"not null;default:1" json:"currentQuestion"`
	// ActiveUserID 仅在 in_progress 时等于 UserID，其余状态为 NULL。
	// 唯一索引保证每个用户最多只有一个进行中的会话（NULL 不参与唯一约束）。
	ActiveUserID *uint      `gorm:"uniqueIndex" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"index" json:"updatedAt"`
	CompletedAt  *time.Time `gorm:"default:null" json:"completedAt"`
	AbandonedAt  *time.Time `gorm:"default:null" json:"abandonedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// IsActive 判断会话是否仍在进行中。
func (s *QuizSession) IsActive() bool {
	return s.Status == StatusInProgress
}

// AnsweredCount 返回已作答的题目数量。
func (s *QuizSession) AnsweredCount() int {
	return s.CurrentQuestion - 1
}

// QuizResponse 对应 quiz_responses 表。题目文本是作答时的快照，写入后不再修改。
type QuizResponse struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      uint      `gorm:"not null;uniqueIndex:idx_response_session_question" json:"sessionId"`
	QuestionNumber int       `gorm:"not null;uniqueIndex:idx_response_session_question" json:"questionNumber"`
	QuestionText   string    `gorm:"type:text;not null" json:"questionText"`
	AnswerKey      string    `gorm:"type:varchar(4);not null" json:"answerKey"`
	AnswerText     string    `gorm:"type:text;not null" json:"answer"`
	AnsweredAt     time.Time `gorm:"autoCreateTime" json:"answeredAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (QuizResponse) TableName() string {
	return "quiz_responses"
}

// Recommendation 对应 recommendations 表，每个完成的会话恰好一条。
type Recommendation struct {
	ID                   uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID            uint              `gorm:"uniqueIndex;not null" json:"sessionId"`
	TierID               string            `gorm:"type:varchar(32);not null" json:"tierId"`
	RecommendedProduct   string            `gorm:"type:varchar(255);not null" json:"recommendedProduct"`
	ProductPrice         int64             `gorm:"not null" json:"productPrice"`
	RecommendationReason string            `gorm:"type:text" json:"recommendationReason"`
	Scores               datatypes.JSONMap `json:"scores"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Recommendation) TableName() string {
	return "recommendations"
}

// AnalyticsEvent 对应 analytics_events 表，只追加，不修改也不删除。
// EventID 用于消费端幂等写入。
type AnalyticsEvent struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"eventId"`
	SessionID uint              `gorm:"index;not null" json:"sessionId"`
	UserID    uint              `gorm:"index;not null" json:"userId"`
	EventType string            `gorm:"type:varchar(64);index;not null" json:"eventType"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

// AllModels 返回需要自动迁移的全部模型。
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&QuizSession{},
		&QuizResponse{},
		&Recommendation{},
		&AnalyticsEvent{},
	}
}
