package repository

import (
	"context"
	"quiz-bot-go/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventFilter 是分析事件查询的过滤条件，零值字段不参与过滤。
type EventFilter struct {
	EventType string
	SessionID uint
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// AnalyticsRepository 持久化分析事件。事件只追加，按 EventID 幂等。
type AnalyticsRepository interface {
	Create(ctx context.Context, event *model.AnalyticsEvent) (bool, error)
	List(ctx context.Context, filter EventFilter) ([]model.AnalyticsEvent, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建一个新的 AnalyticsRepository 实例。
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// Create 写入一条事件。EventID 已存在时什么也不做，返回 false。
func (r *analyticsRepository) Create(ctx context.Context, event *model.AnalyticsEvent) (bool, error) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List 按时间倒序查询事件。
func (r *analyticsRepository) List(ctx context.Context, filter EventFilter) ([]model.AnalyticsEvent, error) {
	var events []model.AnalyticsEvent
	db := r.db.WithContext(ctx).Model(&model.AnalyticsEvent{})
	if filter.EventType != "" {
		db = db.Where("event_type = ?", filter.EventType)
	}
	if filter.SessionID != 0 {
		db = db.Where("session_id = ?", filter.SessionID)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", *filter.EndDate)
	}
	db = db.Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	err := db.Find(&events).Error
	return events, err
}

// CountByType 按事件类型统计数量。
func (r *analyticsRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		EventType string
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&model.AnalyticsEvent{}).
		Select("event_type, COUNT(*) AS total").
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.EventType] = row.Total
	}
	return result, nil
}
