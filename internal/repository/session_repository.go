package repository

import (
	"context"
	"errors"
	"fmt"
	"quiz-bot-go/internal/model"
	"time"

	"gorm.io/gorm"
)

// SessionFilter 是后台列表查询的过滤条件。
type SessionFilter struct {
	Status model.SessionStatus
	UserID uint
	Limit  int
	Offset int
}

// SessionRepository 是会话存储。每个用户最多只有一个 in_progress 会话。
// 所有修改操作都是带条件的单条 UPDATE（比较并交换），因此对同一个会话 ID 是线性一致的。
type SessionRepository interface {
	FindActive(ctx context.Context, userID uint) (*model.QuizSession, error)
	FindByID(ctx context.Context, sessionID uint) (*model.QuizSession, error)
	Create(ctx context.Context, userID uint) (*model.QuizSession, error)
	Advance(ctx context.Context, sessionID uint, nextOrdinal int) (*model.QuizSession, error)
	Complete(ctx context.Context, sessionID uint) (*model.QuizSession, error)
	Abandon(ctx context.Context, sessionID uint) (*model.QuizSession, error)
	Touch(ctx context.Context, sessionID uint) error
	FindIdle(ctx context.Context, cutoff time.Time, limit int) ([]model.QuizSession, error)
	List(ctx context.Context, filter SessionFilter) ([]model.QuizSession, int64, error)
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)
	CountByStatus(ctx context.Context) (map[model.SessionStatus]int64, error)
}

// sessionRepository 是 SessionRepository 接口的 GORM 实现。
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// FindActive 返回用户进行中的会话；没有时返回 (nil, nil)。
func (r *sessionRepository) FindActive(ctx context.Context, userID uint) (*model.QuizSession, error) {
	var s model.QuizSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.StatusInProgress).
		Order("created_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByID 根据 ID 查找会话。
func (r *sessionRepository) FindByID(ctx context.Context, sessionID uint) (*model.QuizSession, error) {
	var s model.QuizSession
	if err := r.db.WithContext(ctx).First(&s, sessionID).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// Create 为用户创建一个从第 1 题开始的新会话。
// 已存在进行中的会话时返回 ErrConflictActiveSession；active_user_id 上的唯一索引兜底并发创建。
func (r *sessionRepository) Create(ctx context.Context, userID uint) (*model.QuizSession, error) {
	existing, err := r.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflictActiveSession
	}

	now := time.Now()
	uid := userID
	s := &model.QuizSession{
		UserID:          userID,
		Status:          model.StatusInProgress,
		CurrentQuestion: 1,
		ActiveUserID:    &uid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflictActiveSession
		}
		return nil, err
	}
	return s, nil
}

// Advance 把会话从 nextOrdinal-1 推进到 nextOrdinal。
// 会话不存在返回 ErrNotFound；不是 in_progress 返回 ErrInvalidTransition；
// 当前题号不是 nextOrdinal-1 返回 ErrOrdinalMismatch。
func (r *sessionRepository) Advance(ctx context.Context, sessionID uint, nextOrdinal int) (*model.QuizSession, error) {
	res := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ? AND status = ? AND current_question = ?", sessionID, model.StatusInProgress, nextOrdinal-1).
		Updates(map[string]interface{}{
			"current_question": nextOrdinal,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainNoop(ctx, sessionID, true)
	}
	return r.FindByID(ctx, sessionID)
}

// Complete 把会话从 in_progress 迁移到 completed，并记录完成时间。
func (r *sessionRepository) Complete(ctx context.Context, sessionID uint) (*model.QuizSession, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ? AND status = ?", sessionID, model.StatusInProgress).
		Updates(map[string]interface{}{
			"status":           model.StatusCompleted,
			"current_question": gorm.Expr("current_question + 1"),
			"active_user_id":   nil,
			"completed_at":     now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainNoop(ctx, sessionID, false)
	}
	return r.FindByID(ctx, sessionID)
}

// Abandon 把会话从 in_progress 迁移到 abandoned。由空闲超时任务调用。
func (r *sessionRepository) Abandon(ctx context.Context, sessionID uint) (*model.QuizSession, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ? AND status = ?", sessionID, model.StatusInProgress).
		Updates(map[string]interface{}{
			"status":         model.StatusAbandoned,
			"active_user_id": nil,
			"abandoned_at":   now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainNoop(ctx, sessionID, false)
	}
	return r.FindByID(ctx, sessionID)
}

// Touch 刷新进行中会话的最后活动时间，不改变题号和状态。
// 会话不存在返回 ErrNotFound；已结束返回 ErrInvalidTransition。
func (r *sessionRepository) Touch(ctx context.Context, sessionID uint) error {
	res := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ? AND status = ?", sessionID, model.StatusInProgress).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.explainNoop(ctx, sessionID, false)
	}
	return nil
}

// explainNoop 在条件更新没有命中任何行时，重新读取会话以给出准确的错误类型。
func (r *sessionRepository) explainNoop(ctx context.Context, sessionID uint, checkOrdinal bool) error {
	s, err := r.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != model.StatusInProgress {
		return fmt.Errorf("%w: session %d is %s", ErrInvalidTransition, sessionID, s.Status)
	}
	if checkOrdinal {
		return fmt.Errorf("%w: session %d is at question %d", ErrOrdinalMismatch, sessionID, s.CurrentQuestion)
	}
	return fmt.Errorf("%w: session %d", ErrInvalidTransition, sessionID)
}

// FindIdle 返回最后活动时间早于 cutoff 的进行中会话，按最久未活动排序。
func (r *sessionRepository) FindIdle(ctx context.Context, cutoff time.Time, limit int) ([]model.QuizSession, error) {
	var sessions []model.QuizSession
	q := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.StatusInProgress, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

// List 分页查询会话，返回当前页和总数。
func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]model.QuizSession, int64, error) {
	var sessions []model.QuizSession
	var total int64

	db := r.db.WithContext(ctx).Model(&model.QuizSession{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.UserID != 0 {
		db = db.Where("user_id = ?", filter.UserID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("created_at DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	if err := db.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// CountActiveByUser 统计用户进行中的会话数量，按不变量只可能是 0 或 1。
func (r *sessionRepository) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("user_id = ? AND status = ?", userID, model.StatusInProgress).
		Count(&n).Error
	return n, err
}

// CountByStatus 按状态统计会话数量。
func (r *sessionRepository) CountByStatus(ctx context.Context) (map[model.SessionStatus]int64, error) {
	var rows []struct {
		Status model.SessionStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[model.SessionStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}
