package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Store 聚合了问卷相关的全部仓储，并提供事务边界。
// Transaction 中传入的 tx 只能在回调内部使用；回调返回错误时所有写入回滚。
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Responses() ResponseRepository
	Recommendations() RecommendationRepository
	Analytics() AnalyticsRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// gormStore 是 Store 的 GORM 实现。
type gormStore struct {
	db *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository                     { return NewUserRepository(s.db) }
func (s *gormStore) Sessions() SessionRepository               { return NewSessionRepository(s.db) }
func (s *gormStore) Responses() ResponseRepository             { return NewResponseRepository(s.db) }
func (s *gormStore) Recommendations() RecommendationRepository { return NewRecommendationRepository(s.db) }
func (s *gormStore) Analytics() AnalyticsRepository            { return NewAnalyticsRepository(s.db) }

// Transaction 在一个数据库事务中执行 fn。
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// translate 把 gorm 错误映射为仓储层的哨兵错误。
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicateKey(err):
		return ErrDuplicate
	}
	return err
}

// isDuplicateKey 判断是否为唯一键冲突。驱动未翻译的错误按 MySQL 和 SQLite 的报错文本兜底识别。
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
