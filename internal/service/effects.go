package service

import (
	"context"
	"errors"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/logger"

	"go.uber.org/zap"
)

// Effects 命令提交后才执行的副作用（通知、审计）。
// 管理器只负责生成，由调用方交给 EffectDispatcher 投递；投递失败不回滚命令。
type Effects struct {
	Notifications []interfaces.Notification
	Audits        []interfaces.AuditRecord
}

func (e *Effects) notify(n interfaces.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	e.Notifications = append(e.Notifications, n)
}

func (e *Effects) audit(actorID uint, action, targetPath string, metadata map[string]any) {
	e.Audits = append(e.Audits, interfaces.AuditRecord{
		ActorID:    actorID,
		Action:     action,
		TargetPath: targetPath,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}

func (e Effects) Empty() bool {
	return len(e.Notifications) == 0 && len(e.Audits) == 0
}

// EffectDispatcher 把副作用分发给所有已配置的通知器和审计器
type EffectDispatcher struct {
	notifiers []interfaces.Notifier
	auditors  []interfaces.Auditor
}

func NewEffectDispatcher(notifiers []interfaces.Notifier, auditors []interfaces.Auditor) *EffectDispatcher {
	return &EffectDispatcher{notifiers: notifiers, auditors: auditors}
}

// Dispatch 逐个投递，每个失败单独记录日志，全部尝试完后返回合并的错误
func (d *EffectDispatcher) Dispatch(ctx context.Context, effects Effects) error {
	if d == nil || effects.Empty() {
		return nil
	}

	var errs []error
	for _, n := range effects.Notifications {
		for _, notifier := range d.notifiers {
			if err := notifier.Notify(ctx, n); err != nil {
				logger.L.Warn("Failed to deliver notification",
					zap.Uint("recipientID", n.RecipientID),
					zap.String("kind", n.Kind),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
	}
	for _, rec := range effects.Audits {
		for _, auditor := range d.auditors {
			if err := auditor.Audit(ctx, rec); err != nil {
				logger.L.Warn("Failed to write audit record",
					zap.Uint("actorID", rec.ActorID),
					zap.String("action", rec.Action),
					zap.String("path", rec.TargetPath),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
