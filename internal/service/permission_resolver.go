package service

import (
	"context"

	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
	"go-share-portal/pkg/logger"
	"go-share-portal/pkg/utils"

	"go.uber.org/zap"
)

// PermissionResolver 判断某个用户对虚拟路径是否拥有所需权限。
// 直接授权和祖先文件夹的授权都算数，取其中最高的级别；任何存储错误都按拒绝处理。
type PermissionResolver struct {
	shares repository.ShareRepository
}

func NewPermissionResolver(shares repository.ShareRepository) *PermissionResolver {
	return &PermissionResolver{shares: shares}
}

// Resolve 不关心分享者是谁，只要存在足够的授权即放行
func (r *PermissionResolver) Resolve(ctx context.Context, actorID uint, itemPath string, required model.PermissionLevel) bool {
	return r.resolve(ctx, actorID, 0, itemPath, required)
}

// ResolveOwned 只考虑 ownerID 发出的授权，用于访问某个用户自己的目录
func (r *PermissionResolver) ResolveOwned(ctx context.Context, actorID, ownerID uint, itemPath string, required model.PermissionLevel) bool {
	if ownerID == 0 {
		return false
	}
	return r.resolve(ctx, actorID, ownerID, itemPath, required)
}

func (r *PermissionResolver) resolve(ctx context.Context, actorID, ownerID uint, itemPath string, required model.PermissionLevel) bool {
	if !required.Valid() {
		return false
	}
	level, err := r.effectiveLevel(ctx, actorID, ownerID, itemPath, required)
	if err != nil {
		logger.L.Warn("Permission lookup failed, denying access",
			zap.Uint("actorID", actorID),
			zap.String("path", itemPath),
			zap.Error(err))
		return false
	}
	return level >= required
}

// EffectiveLevel 返回用户对路径的最高有效权限，没有任何授权时为 PermissionNone
func (r *PermissionResolver) EffectiveLevel(ctx context.Context, actorID uint, itemPath string) (model.PermissionLevel, error) {
	return r.effectiveLevel(ctx, actorID, 0, itemPath, model.PermissionReadWrite)
}

// effectiveLevel 达到 enough 即提前返回。
// 精确路径上的授权不会单独决定结果：级别不够时继续看祖先文件夹的授权，取最高者，
// 因此结果与授权的枚举顺序无关。ownerID 为 0 时不区分分享者。
func (r *PermissionResolver) effectiveLevel(ctx context.Context, actorID, ownerID uint, itemPath string, enough model.PermissionLevel) (model.PermissionLevel, error) {
	p := utils.NormalizePath(itemPath)
	if actorID == 0 || p == "" {
		return model.PermissionNone, nil
	}

	best := model.PermissionNone
	consider := func(s model.FileShare) {
		if ownerID != 0 && s.OwnerID != ownerID {
			return
		}
		if s.PermissionLevel.Valid() && s.PermissionLevel > best {
			best = s.PermissionLevel
		}
	}

	exact, err := r.shares.FindExact(ctx, p, actorID)
	if err != nil {
		return model.PermissionNone, err
	}
	for _, s := range exact {
		consider(s)
	}
	if best >= enough {
		return best, nil
	}

	folders, err := r.shares.ListFolderGrants(ctx, actorID)
	if err != nil {
		return model.PermissionNone, err
	}
	for _, s := range folders {
		if utils.IsSameOrDescendant(p, utils.NormalizePath(s.ItemPath)) {
			consider(s)
			if best >= enough {
				break
			}
		}
	}
	return best, nil
}
