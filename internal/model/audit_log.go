package model

import "time"

type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    uint      `gorm:"not null;index" json:"actor_id"`
	Action     string    `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetPath string    `gorm:"type:varchar(512)" json:"target_path"`
	Metadata   string    `gorm:"type:text" json:"metadata"` // JSON 编码
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
