package repository

import (
	"context"
	"errors"
	"time"

	"go-share-portal/internal/model"

	"gorm.io/gorm"
)

type GormLinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

func (r *GormLinkRepository) Create(ctx context.Context, link *model.LinkShare) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *GormLinkRepository) FindByID(ctx context.Context, id uint) (*model.LinkShare, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormLinkRepository) FindByToken(ctx context.Context, token string) (*model.LinkShare, error) {
	return r.findOne(ctx, "token = ?", token)
}

func (r *GormLinkRepository) findOne(ctx context.Context, query string, args ...any) (*model.LinkShare, error) {
	var link model.LinkShare
	if err := r.db.WithContext(ctx).Where(query, args...).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *GormLinkRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.LinkShare{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormLinkRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.LinkShare, error) {
	var links []model.LinkShare
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&links).Error
	return links, err
}

// TryConsume 单条条件 UPDATE，计数检查和自增在同一语句里完成
func (r *GormLinkRepository) TryConsume(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.LinkShare{}).
		Where("id = ?", id).
		Where("(max_access IS NULL OR access_count < max_access)").
		Where("(expires_at IS NULL OR expires_at > ?)", now.UTC()).
		UpdateColumn("access_count", gorm.Expr("access_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
