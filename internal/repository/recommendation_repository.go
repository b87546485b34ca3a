package repository

import (
	"context"
	"quiz-bot-go/internal/model"

	"gorm.io/gorm"
)

// RecommendationRepository 保存会话的最终推荐，每个会话最多一条。
type RecommendationRepository interface {
	Create(ctx context.Context, rec *model.Recommendation) error
	FindBySession(ctx context.Context, sessionID uint) (*model.Recommendation, error)
	List(ctx context.Context, offset, limit int) ([]model.Recommendation, int64, error)
	CountByTier(ctx context.Context) (map[string]int64, error)
}

type recommendationRepository struct {
	db *gorm.DB
}

// NewRecommendationRepository 创建一个新的 RecommendationRepository 实例。
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

// Create 写入推荐结果；同一会话重复写入返回 ErrDuplicate。
func (r *recommendationRepository) Create(ctx context.Context, rec *model.Recommendation) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// FindBySession 查找会话的推荐结果。
func (r *recommendationRepository) FindBySession(ctx context.Context, sessionID uint) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// List 分页查询推荐结果，按时间倒序。
func (r *recommendationRepository) List(ctx context.Context, offset, limit int) ([]model.Recommendation, int64, error) {
	var recs []model.Recommendation
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Recommendation{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	db = db.Order("created_at DESC, id DESC").Offset(offset)
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// CountByTier 统计每个档位被推荐的次数。
func (r *recommendationRepository) CountByTier(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		TierID string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Recommendation{}).
		Select("tier_id, COUNT(*) AS total").
		Group("tier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.TierID] = row.Total
	}
	return result, nil
}
