package repository

import (
	"context"
	"errors"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
)

// 查找类方法在记录不存在时返回 (nil, nil)；
// 其他方法在目标不存在时返回 ErrNotFound。
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Search 在用户名和邮箱中模糊匹配活跃用户，排除 excludeID
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error)
}

type ShareRepository interface {
	// Upsert 以 (item_path, owner_id, shared_with_id) 为唯一键插入或更新，
	// 冲突时只更新权限、留言和 updated_at。created 表示是否新建。
	Upsert(ctx context.Context, share *model.FileShare) (saved *model.FileShare, created bool, err error)
	FindByID(ctx context.Context, id uint) (*model.FileShare, error)
	UpdateLevel(ctx context.Context, id uint, level model.PermissionLevel) (*model.FileShare, error)
	Delete(ctx context.Context, id uint) error
	// 以下列表均按 created_at 倒序
	ListByOwner(ctx context.Context, ownerID uint) ([]model.FileShare, error)
	ListByGrantee(ctx context.Context, granteeID uint) ([]model.FileShare, error)
	ListForPath(ctx context.Context, ownerID uint, itemPath string) ([]model.FileShare, error)
	// FindExact 返回 item_path 完全匹配且授予 granteeID 的所有分享（可能来自多个所有者）
	FindExact(ctx context.Context, itemPath string, granteeID uint) ([]model.FileShare, error)
	// ListFolderGrants 返回授予 granteeID 的所有文件夹分享
	ListFolderGrants(ctx context.Context, granteeID uint) ([]model.FileShare, error)
}

type LinkRepository interface {
	// Create 令牌冲突时返回 ErrDuplicate
	Create(ctx context.Context, link *model.LinkShare) error
	FindByID(ctx context.Context, id uint) (*model.LinkShare, error)
	FindByToken(ctx context.Context, token string) (*model.LinkShare, error)
	Delete(ctx context.Context, id uint) error
	ListByOwner(ctx context.Context, ownerID uint) ([]model.LinkShare, error)
	// TryConsume 原子地占用一次访问名额：仅当链接存在、未过期且未用尽时
	// access_count 加一并返回 true；否则不做修改并返回 false。
	TryConsume(ctx context.Context, id uint, now time.Time) (bool, error)
}

// AuditRepository 同时作为审计出口落库
type AuditRepository interface {
	interfaces.Auditor
	Create(ctx context.Context, entry *model.AuditLog) error
	ListByActor(ctx context.Context, actorID uint, limit int) ([]model.AuditLog, error)
}
