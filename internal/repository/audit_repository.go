package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"

	"gorm.io/gorm"
)

// GormAuditRepository 把审计记录写进 audit_logs 表，同时实现 interfaces.Auditor
type GormAuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormAuditRepository) ListByActor(ctx context.Context, actorID uint, limit int) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	q := r.db.WithContext(ctx).Where("actor_id = ?", actorID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func (r *GormAuditRepository) Audit(ctx context.Context, rec interfaces.AuditRecord) error {
	entry, err := AuditLogFromRecord(rec)
	if err != nil {
		return err
	}
	return r.Create(ctx, entry)
}

// AuditLogFromRecord 把审计记录转换成数据库行，metadata 以 JSON 保存
func AuditLogFromRecord(rec interfaces.AuditRecord) (*model.AuditLog, error) {
	entry := &model.AuditLog{
		ActorID:    rec.ActorID,
		Action:     rec.Action,
		TargetPath: rec.TargetPath,
		CreatedAt:  rec.CreatedAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		entry.Metadata = string(data)
	}
	return entry, nil
}
