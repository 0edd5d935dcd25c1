package interfaces

import (
	"context"
	"time"
)

// 通知种类
const (
	NotificationShareCreated = "share_created"
	NotificationShareUpdated = "share_updated"
	NotificationShareRemoved = "share_removed"
)

// Notification 发给某个用户的通知
type Notification struct {
	RecipientID uint           `json:"recipient_id"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Link        string         `json:"link,omitempty"`
	ActorID     uint           `json:"actor_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AuditRecord 一条审计记录
type AuditRecord struct {
	ActorID    uint           `json:"actor_id"`
	Action     string         `json:"action"`
	TargetPath string         `json:"target_path"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Notifier 通知投递
// notify.Hub、notify.KafkaPublisher 实现
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Auditor 审计记录写入
// repository.AuditRepository、notify.KafkaPublisher 实现
type Auditor interface {
	Audit(ctx context.Context, rec AuditRecord) error
}

// FileMeta 公开链接放行后返回的文件元数据
type FileMeta struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	IsFolder bool      `json:"is_folder"`
	ModTime  time.Time `json:"mod_time"`
}

// FileStat 读取虚拟路径对应文件的元数据
// service.StorageService 实现
type FileStat interface {
	Stat(ctx context.Context, ownerID uint, virtualPath string) (*FileMeta, error)
}
