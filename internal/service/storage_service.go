package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/utils"
)

var _ interfaces.FileStat = (*StorageService)(nil)

// StorageService 把虚拟路径映射到磁盘：
// /home/... 对应 <base>/users/user_<owner>/...，/shared/... 对应 <base>/shared/...
type StorageService struct {
	basePath string
}

// NewStorageService 创建存储服务并确保根目录存在
func NewStorageService(basePath string) (*StorageService, error) {
	if basePath == "" {
		basePath = "uploads"
	}
	// 确保目录存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &StorageService{basePath: basePath}, nil
}

// Resolve 返回虚拟路径对应的本地路径。NormalizePath 已折叠 ..，结果不会越出 basePath。
func (s *StorageService) Resolve(ownerID uint, virtualPath string) (string, error) {
	p := utils.NormalizePath(virtualPath)
	switch {
	case utils.IsSameOrDescendant(p, "/home"):
		if ownerID == 0 {
			return "", ErrPathNotAllowed
		}
		rel := strings.TrimPrefix(p, "/home")
		return filepath.Join(s.basePath, "users", fmt.Sprintf("user_%d", ownerID), filepath.FromSlash(rel)), nil
	case utils.IsSameOrDescendant(p, "/shared"):
		rel := strings.TrimPrefix(p, "/shared")
		return filepath.Join(s.basePath, "shared", filepath.FromSlash(rel)), nil
	}
	return "", ErrPathNotAllowed
}

// Stat 不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)。
// share.allowed_roots 里没有磁盘映射的根目录也按不存在处理。
func (s *StorageService) Stat(_ context.Context, ownerID uint, virtualPath string) (*interfaces.FileMeta, error) {
	local, err := s.Resolve(ownerID, virtualPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	}
	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return &interfaces.FileMeta{
		Name:     utils.BaseName(virtualPath),
		Size:     info.Size(),
		IsFolder: info.IsDir(),
		ModTime:  info.ModTime(),
	}, nil
}
