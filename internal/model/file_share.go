package model

import (
	"fmt"
	"strings"
	"time"
)

// PermissionLevel 直接分享的权限级别，数值越大权限越高
type PermissionLevel int

const (
	PermissionNone      PermissionLevel = 0
	PermissionReadOnly  PermissionLevel = 1
	PermissionReadWrite PermissionLevel = 2
)

func (p PermissionLevel) Valid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

func (p PermissionLevel) String() string {
	switch p {
	case PermissionReadOnly:
		return "read"
	case PermissionReadWrite:
		return "write"
	default:
		return "none"
	}
}

// ParsePermissionLevel 接受 "read"/"write" 或 "1"/"2"
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "read", "readonly", "read_only":
		return PermissionReadOnly, nil
	case "2", "write", "readwrite", "read_write":
		return PermissionReadWrite, nil
	}
	return PermissionNone, fmt.Errorf("invalid permission level %q", s)
}

// FileShare 用户之间的直接分享记录。
// 删除是物理删除，没有软删除窗口。
type FileShare struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ItemPath        string          `gorm:"type:varchar(512);not null;uniqueIndex:idx_file_share;index:idx_share_grantee_path" json:"item_path"`
	ItemName        string          `gorm:"type:varchar(255);not null" json:"item_name"`
	IsFolder        bool            `gorm:"not null;default:false" json:"is_folder"`
	OwnerID         uint            `gorm:"not null;index;uniqueIndex:idx_file_share" json:"owner_id"`
	SharedWithID    uint            `gorm:"not null;uniqueIndex:idx_file_share;index:idx_share_grantee_path" json:"shared_with_id"`
	PermissionLevel PermissionLevel `gorm:"not null;default:1" json:"permission_level"`
	Message         *string         `gorm:"type:text" json:"message,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
