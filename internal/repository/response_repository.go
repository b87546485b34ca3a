package repository

import (
	"context"
	"quiz-bot-go/internal/model"

	"gorm.io/gorm"
)

// ResponseFilter 是后台作答列表的过滤条件。
type ResponseFilter struct {
	SessionID uint
	Limit     int
	Offset    int
}

// ResponseRepository 保存每道题的作答记录，只追加。
// (session_id, question_number) 唯一，重复写入返回 ErrDuplicate。
type ResponseRepository interface {
	Create(ctx context.Context, resp *model.QuizResponse) error
	ListBySession(ctx context.Context, sessionID uint) ([]model.QuizResponse, error)
	List(ctx context.Context, filter ResponseFilter) ([]model.QuizResponse, int64, error)
}

type responseRepository struct {
	db *gorm.DB
}

// NewResponseRepository 创建一个新的 ResponseRepository 实例。
func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

// Create 写入一条作答记录。
func (r *responseRepository) Create(ctx context.Context, resp *model.QuizResponse) error {
	err := r.db.WithContext(ctx).Create(resp).Error
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ListBySession 按题号顺序返回一个会话的全部作答。
func (r *responseRepository) ListBySession(ctx context.Context, sessionID uint) ([]model.QuizResponse, error) {
	var responses []model.QuizResponse
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_number ASC").
		Find(&responses).Error
	return responses, err
}

// List 分页查询作答记录。
func (r *responseRepository) List(ctx context.Context, filter ResponseFilter) ([]model.QuizResponse, int64, error) {
	var responses []model.QuizResponse
	var total int64

	db := r.db.WithContext(ctx).Model(&model.QuizResponse{})
	if filter.SessionID != 0 {
		db = db.Where("session_id = ?", filter.SessionID)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("answered_at DESC, id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	if err := db.Find(&responses).Error; err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}
