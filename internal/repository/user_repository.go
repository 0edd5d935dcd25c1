package repository

import (
	"context"
	"errors"
	"strings"

	"go-share-portal/internal/model"

	"gorm.io/gorm"
)

// GormUserRepository 处理用户数据持久化
type GormUserRepository struct {
	db *gorm.DB
}

// 创建一个新的用户存储库实例
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// 新建用户
func (r *GormUserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// 通过ID查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// 通过用户名查找用户
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// 通过邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 搜索可分享的候选用户
func (r *GormUserRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	var users []model.User
	err := r.db.WithContext(ctx).
		Where("active = ? AND id <> ?", true, excludeID).
		Where("(username LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!')", pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// 转义 LIKE 通配符，转义字符为 '!'
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
