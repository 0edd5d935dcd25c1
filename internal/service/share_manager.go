package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
	"go-share-portal/pkg/logger"
	"go-share-portal/pkg/utils"

	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// CreateShareRequest 把文件或文件夹直接分享给另一个用户
type CreateShareRequest struct {
	OwnerID      uint                  `validate:"required"`
	ItemPath     string                `validate:"required,max=512"`
	ItemName     string                `validate:"max=255"`
	IsFolder     bool
	SharedWithID uint                  `validate:"required"`
	Level        model.PermissionLevel `validate:"oneof=1 2"`
	Message      *string               `validate:"omitempty,max=2000"`
}

type ShareResult struct {
	Share   *model.FileShare
	Created bool
	Effects Effects
}

// ShareManager 直接分享的增删改查。只有所有者能修改自己的分享。
type ShareManager struct {
	shares repository.ShareRepository
	users  repository.UserRepository
	roots  []string
}

func NewShareManager(shares repository.ShareRepository, users repository.UserRepository, allowedRoots []string) *ShareManager {
	return &ShareManager{shares: shares, users: users, roots: allowedRoots}
}

// Create 同一 (路径, 所有者, 被分享者) 重复分享时覆盖原记录，不会产生第二行
func (m *ShareManager) Create(ctx context.Context, req CreateShareRequest) (*ShareResult, error) {
	if req.OwnerID != 0 && req.OwnerID == req.SharedWithID {
		return nil, ErrSelfShare
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	p := utils.NormalizePath(req.ItemPath)
	if !utils.IsShareableRoot(p, m.roots) {
		return nil, ErrPathNotAllowed
	}

	grantee, err := m.users.FindByID(ctx, req.SharedWithID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify target user: %w", err)
	}
	if grantee == nil || !grantee.Active {
		return nil, ErrUserNotFound
	}

	name := strings.TrimSpace(req.ItemName)
	if name == "" {
		name = utils.BaseName(p)
	}
	saved, created, err := m.shares.Upsert(ctx, &model.FileShare{
		ItemPath:        p,
		ItemName:        name,
		IsFolder:        req.IsFolder,
		OwnerID:         req.OwnerID,
		SharedWithID:    req.SharedWithID,
		PermissionLevel: req.Level,
		Message:         req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save share: %w", err)
	}

	logger.L.Info("File share saved",
		zap.Uint("shareID", saved.ID),
		zap.Uint("ownerID", saved.OwnerID),
		zap.Uint("sharedWithID", saved.SharedWithID),
		zap.String("path", saved.ItemPath),
		zap.Bool("created", created))

	result := &ShareResult{Share: saved, Created: created}
	ownerName := m.displayName(ctx, req.OwnerID)
	result.Effects.notify(interfaces.Notification{
		RecipientID: saved.SharedWithID,
		Kind:        interfaces.NotificationShareCreated,
		Title:       "New share",
		Message:     fmt.Sprintf("%s shared %q with you (%s)", ownerName, saved.ItemName, saved.PermissionLevel),
		Link:        "/shared-with-me",
		ActorID:     req.OwnerID,
		Metadata: map[string]any{
			"share_id":  saved.ID,
			"item_path": saved.ItemPath,
			"is_folder": saved.IsFolder,
		},
	})
	action := "share.update"
	if created {
		action = "share.create"
	}
	result.Effects.audit(req.OwnerID, action, saved.ItemPath, map[string]any{
		"share_id":         saved.ID,
		"shared_with_id":   saved.SharedWithID,
		"permission_level": saved.PermissionLevel.String(),
	})
	return result, nil
}

// Update 修改权限级别
func (m *ShareManager) Update(ctx context.Context, ownerID, shareID uint, level model.PermissionLevel) (*ShareResult, error) {
	if !level.Valid() {
		return nil, newValidationError("Level", "must be read or write")
	}
	if _, err := m.ownedShare(ctx, ownerID, shareID); err != nil {
		return nil, err
	}

	updated, err := m.shares.UpdateLevel(ctx, shareID, level)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update share: %w", err)
	}

	logger.L.Info("File share updated",
		zap.Uint("shareID", shareID),
		zap.String("level", level.String()))

	result := &ShareResult{Share: updated}
	result.Effects.notify(interfaces.Notification{
		RecipientID: updated.SharedWithID,
		Kind:        interfaces.NotificationShareUpdated,
		Title:       "Share updated",
		Message:     fmt.Sprintf("Your access to %q is now %s", updated.ItemName, level),
		Link:        "/shared-with-me",
		ActorID:     ownerID,
		Metadata:    map[string]any{"share_id": updated.ID, "item_path": updated.ItemPath},
	})
	result.Effects.audit(ownerID, "share.update", updated.ItemPath, map[string]any{
		"share_id":         updated.ID,
		"permission_level": level.String(),
	})
	return result, nil
}

// Delete 物理删除，返回后解析器立即拒绝该授权
func (m *ShareManager) Delete(ctx context.Context, ownerID, shareID uint) (Effects, error) {
	var effects Effects
	share, err := m.ownedShare(ctx, ownerID, shareID)
	if err != nil {
		return effects, err
	}
	if err := m.shares.Delete(ctx, shareID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return effects, ErrNotFound
		}
		return effects, fmt.Errorf("failed to delete share: %w", err)
	}

	logger.L.Info("File share deleted", zap.Uint("shareID", shareID), zap.Uint("ownerID", ownerID))

	effects.notify(interfaces.Notification{
		RecipientID: share.SharedWithID,
		Kind:        interfaces.NotificationShareRemoved,
		Title:       "Share removed",
		Message:     fmt.Sprintf("%s stopped sharing %q with you", m.displayName(ctx, ownerID), share.ItemName),
		ActorID:     ownerID,
		Metadata:    map[string]any{"share_id": share.ID, "item_path": share.ItemPath},
	})
	effects.audit(ownerID, "share.delete", share.ItemPath, map[string]any{
		"share_id":       share.ID,
		"shared_with_id": share.SharedWithID,
	})
	return effects, nil
}

func (m *ShareManager) ListByOwner(ctx context.Context, ownerID uint) ([]model.FileShare, error) {
	shares, err := m.shares.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

func (m *ShareManager) ListByGrantee(ctx context.Context, granteeID uint) ([]model.FileShare, error) {
	shares, err := m.shares.ListByGrantee(ctx, granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

// ListForPath 所有者查看某个路径分享给了谁
func (m *ShareManager) ListForPath(ctx context.Context, ownerID uint, itemPath string) ([]model.FileShare, error) {
	p := utils.NormalizePath(itemPath)
	if p == "" {
		return nil, newValidationError("ItemPath", "is required")
	}
	shares, err := m.shares.ListForPath(ctx, ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

// SearchCandidateUsers 查找可以分享给的活跃用户，不包括自己
func (m *ShareManager) SearchCandidateUsers(ctx context.Context, actorID uint, query string, limit int) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.User{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	users, err := m.users.Search(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (m *ShareManager) ownedShare(ctx context.Context, ownerID, shareID uint) (*model.FileShare, error) {
	share, err := m.shares.FindByID(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	if share == nil {
		return nil, ErrNotFound
	}
	if share.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return share, nil
}

func (m *ShareManager) displayName(ctx context.Context, userID uint) string {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return fmt.Sprintf("user #%d", userID)
	}
	return user.Username
}
