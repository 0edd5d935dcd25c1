package repository

import (
	"context"
	"errors"
	"time"

	"go-share-portal/internal/model"

	"gorm.io/gorm"
)

type GormShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *GormShareRepository {
	return &GormShareRepository{db: db}
}

// Upsert 创建或更新直接分享
func (r *GormShareRepository) Upsert(ctx context.Context, share *model.FileShare) (*model.FileShare, bool, error) {
	saved, created, err := r.upsert(ctx, share)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发插入了同一唯一键，重试一次即走更新分支
		saved, created, err = r.upsert(ctx, share)
	}
	return saved, created, err
}

func (r *GormShareRepository) upsert(ctx context.Context, share *model.FileShare) (*model.FileShare, bool, error) {
	var (
		saved   model.FileShare
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("item_path = ? AND owner_id = ? AND shared_with_id = ?",
			share.ItemPath, share.OwnerID, share.SharedWithID).First(&saved).Error

		switch {
		case err == nil:
			// 已存在：只更新权限、留言和 updated_at，名称和 is_folder 保持首次分享时的值
			updates := map[string]interface{}{
				"permission_level": share.PermissionLevel,
				"message":          share.Message,
				"updated_at":       time.Now(),
			}
			if err := tx.Model(&model.FileShare{}).Where("id = ?", saved.ID).Updates(updates).Error; err != nil {
				return err
			}
			return tx.First(&saved, saved.ID).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			record := *share
			record.ID = 0
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			saved = record
			created = true
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return &saved, created, nil
}

func (r *GormShareRepository) FindByID(ctx context.Context, id uint) (*model.FileShare, error) {
	var share model.FileShare
	if err := r.db.WithContext(ctx).First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

func (r *GormShareRepository) UpdateLevel(ctx context.Context, id uint, level model.PermissionLevel) (*model.FileShare, error) {
	res := r.db.WithContext(ctx).Model(&model.FileShare{}).Where("id = ?", id).
		Updates(map[string]interface{}{"permission_level": level, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete 物理删除，下一次权限解析立即失效
func (r *GormShareRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.FileShare{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// 查询用户分享出去的所有文件
func (r *GormShareRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.FileShare, error) {
	return r.list(ctx, "owner_id = ?", ownerID)
}

// 查询分享给指定用户的所有文件
func (r *GormShareRepository) ListByGrantee(ctx context.Context, granteeID uint) ([]model.FileShare, error) {
	return r.list(ctx, "shared_with_id = ?", granteeID)
}

func (r *GormShareRepository) ListForPath(ctx context.Context, ownerID uint, itemPath string) ([]model.FileShare, error) {
	return r.list(ctx, "owner_id = ? AND item_path = ?", ownerID, itemPath)
}

func (r *GormShareRepository) FindExact(ctx context.Context, itemPath string, granteeID uint) ([]model.FileShare, error) {
	return r.list(ctx, "item_path = ? AND shared_with_id = ?", itemPath, granteeID)
}

func (r *GormShareRepository) ListFolderGrants(ctx context.Context, granteeID uint) ([]model.FileShare, error) {
	return r.list(ctx, "shared_with_id = ? AND is_folder = ?", granteeID, true)
}

func (r *GormShareRepository) list(ctx context.Context, query string, args ...any) ([]model.FileShare, error) {
	var shares []model.FileShare
	err := r.db.WithContext(ctx).Where(query, args...).
		Order("created_at DESC").Order("id DESC").
		Find(&shares).Error
	return shares, err
}
