package model

import "time"

// LinkShare 公开链接。对外只暴露 Token，从不暴露数据库 ID。
type LinkShare struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	Path         string     `gorm:"type:varchar(512);not null" json:"path"`
	OwnerID      uint       `gorm:"not null;index" json:"owner_id"`
	PasswordHash *string    `gorm:"type:varchar(255)" json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxAccess    *int64     `json:"max_access,omitempty"`
	AccessCount  int64      `gorm:"not null;default:0" json:"access_count"`
	RequireLogin bool       `gorm:"not null;default:false" json:"require_login"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (l *LinkShare) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// IsExpired now 等于 ExpiresAt 时即视为过期
func (l *LinkShare) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

func (l *LinkShare) IsExhausted() bool {
	return l.MaxAccess != nil && l.AccessCount >= *l.MaxAccess
}
