package service

import (
	"context"
	"errors"
	"testing"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("broker unavailable")}
	audits := memory.NewAuditRepository()

	d := NewEffectDispatcher(
		[]interfaces.Notifier{failing, ok},
		[]interfaces.Auditor{audits, failing},
	)

	var effects Effects
	effects.notify(interfaces.Notification{RecipientID: 2, Kind: interfaces.NotificationShareCreated})
	effects.audit(1, "share.create", "/home/docs", map[string]any{"share_id": 9})

	err := d.Dispatch(ctx, effects)
	assert.Error(t, err, "failures are reported")

	// 一个通知器失败不影响其他通知器
	require.Len(t, ok.notifications, 1)
	assert.Equal(t, uint(2), ok.notifications[0].RecipientID)
	assert.False(t, ok.notifications[0].CreatedAt.IsZero())

	entries, err := audits.ListByActor(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "share.create", entries[0].Action)
}

func TestEffectDispatcher_Empty(t *testing.T) {
	var d *EffectDispatcher
	assert.NoError(t, d.Dispatch(context.Background(), Effects{}))

	d = NewEffectDispatcher(nil, nil)
	var effects Effects
	effects.audit(1, "link.create", "/home/a", nil)
	assert.NoError(t, d.Dispatch(context.Background(), effects))
}
