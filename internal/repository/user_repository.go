package repository

import (
	"context"
	"errors"
	"quiz-bot-go/internal/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	FindOrCreate(ctx context.Context, phoneNumber string) (*model.User, error)
	FindByPhone(ctx context.Context, phoneNumber string) (*model.User, error)
	FindByID(ctx context.Context, userID uint) (*model.User, error)
	FindWithPagination(ctx context.Context, offset, limit int) ([]model.User, int64, error)
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindOrCreate 按手机号查找用户，不存在时创建。
// 两个请求同时为同一个新号码建档时，后到者会撞上唯一索引，此时重新读取即可。
func (r *userRepository) FindOrCreate(ctx context.Context, phoneNumber string) (*model.User, error) {
	user, err := r.FindByPhone(ctx, phoneNumber)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user = &model.User{PhoneNumber: phoneNumber}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return r.FindByPhone(ctx, phoneNumber)
		}
		return nil, err
	}
	return user, nil
}

// FindByPhone 根据手机号查找用户。
func (r *userRepository) FindByPhone(ctx context.Context, phoneNumber string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("phone_number = ?", phoneNumber).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByID 根据用户 ID 从数据库中查找一个用户。
func (r *userRepository) FindByID(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindWithPagination 分页检索用户记录，返回用户列表和总记录数。
func (r *userRepository) FindWithPagination(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})

	// 首先计算总记录数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
