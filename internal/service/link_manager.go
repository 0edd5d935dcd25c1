package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
	"go-share-portal/pkg/logger"
	"go-share-portal/pkg/utils"

	"github.com/sethvargo/go-password/password"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenRetries = 3

// TokenGenerator 生成公开链接令牌
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator 用 crypto/rand 生成只含字母和数字的令牌，可以直接放进 URL
type RandomTokenGenerator struct {
	Length int
}

func (g RandomTokenGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 32
	}
	return password.Generate(length, length/4, 0, false, true)
}

// CreateLinkRequest 创建公开链接的命令
type CreateLinkRequest struct {
	OwnerID        uint    `validate:"required"`
	Path           string  `validate:"required,max=512"`
	Password       *string `validate:"omitempty,min=1,max=72,bcrypt_max"`
	ExpiresInHours *int    `validate:"omitempty,gt=0"`
	MaxAccess      *int64  `validate:"omitempty,gt=0"`
	RequireLogin   bool
}

type LinkResult struct {
	Link    *model.LinkShare
	URL     string
	Effects Effects
}

type LinkManagerConfig struct {
	AllowedRoots  []string
	PasswordCost  int
	PublicBaseURL string
}

// LinkManager 公开链接的创建、删除和列表
type LinkManager struct {
	links  repository.LinkRepository
	tokens TokenGenerator
	cfg    LinkManagerConfig
	now    func() time.Time
}

func NewLinkManager(links repository.LinkRepository, tokens TokenGenerator, cfg LinkManagerConfig) *LinkManager {
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &LinkManager{
		links:  links,
		tokens: tokens,
		cfg:    cfg,
		now:    time.Now,
	}
}

// ShareURL 令牌对应的公开访问地址
func (m *LinkManager) ShareURL(token string) string {
	return m.cfg.PublicBaseURL + "/s/" + token
}

func (m *LinkManager) Create(ctx context.Context, req CreateLinkRequest) (*LinkResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	p := utils.NormalizePath(req.Path)
	if !utils.IsShareableRoot(p, m.cfg.AllowedRoots) {
		return nil, ErrPathNotAllowed
	}

	link := &model.LinkShare{
		Path:         p,
		OwnerID:      req.OwnerID,
		MaxAccess:    req.MaxAccess,
		RequireLogin: req.RequireLogin,
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), m.cfg.PasswordCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash link password: %w", err)
		}
		h := string(hash)
		link.PasswordHash = &h
	}
	if req.ExpiresInHours != nil {
		expiresAt := m.now().UTC().Add(time.Duration(*req.ExpiresInHours) * time.Hour).Truncate(time.Second)
		link.ExpiresAt = &expiresAt
	}

	if err := m.insertWithFreshToken(ctx, link); err != nil {
		return nil, err
	}

	logger.L.Info("Link share created",
		zap.Uint("linkID", link.ID),
		zap.Uint("ownerID", link.OwnerID),
		zap.String("path", link.Path))

	result := &LinkResult{Link: link, URL: m.ShareURL(link.Token)}
	result.Effects.audit(req.OwnerID, "link.create", link.Path, map[string]any{
		"link_id":       link.ID,
		"has_password":  link.HasPassword(),
		"require_login": link.RequireLogin,
	})
	return result, nil
}

// insertWithFreshToken 令牌冲突时换一个重试
func (m *LinkManager) insertWithFreshToken(ctx context.Context, link *model.LinkShare) error {
	for attempt := 0; attempt < tokenRetries; attempt++ {
		token, err := m.tokens.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate link token: %w", err)
		}
		link.Token = token
		err = m.links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to save link share: %w", err)
		}
		logger.L.Warn("Link token collision, retrying", zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("failed to allocate a unique link token after %d attempts", tokenRetries)
}

func (m *LinkManager) Delete(ctx context.Context, ownerID, linkID uint) (Effects, error) {
	var effects Effects
	link, err := m.links.FindByID(ctx, linkID)
	if err != nil {
		return effects, fmt.Errorf("failed to load link share: %w", err)
	}
	if link == nil {
		return effects, ErrNotFound
	}
	if link.OwnerID != ownerID {
		return effects, ErrNotOwner
	}
	if err := m.links.Delete(ctx, linkID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return effects, ErrNotFound
		}
		return effects, fmt.Errorf("failed to delete link share: %w", err)
	}

	logger.L.Info("Link share deleted", zap.Uint("linkID", linkID), zap.Uint("ownerID", ownerID))
	effects.audit(ownerID, "link.delete", link.Path, map[string]any{"link_id": linkID})
	return effects, nil
}

func (m *LinkManager) ListByOwner(ctx context.Context, ownerID uint) ([]model.LinkShare, error) {
	links, err := m.links.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list link shares: %w", err)
	}
	return links, nil
}
