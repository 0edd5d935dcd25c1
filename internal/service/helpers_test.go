package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

// seedUsers 创建 n 个活跃用户，返回它们的 ID
func seedUsers(t *testing.T, repo *memory.UserRepository, names ...string) []uint {
	t.Helper()
	ids := make([]uint, 0, len(names))
	for _, name := range names {
		u := &model.User{
			Username: name,
			Password: "x",
			Email:    fmt.Sprintf("%s@example.com", name),
			Active:   true,
		}
		require.NoError(t, repo.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

// recordingNotifier 记录收到的通知和审计
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []interfaces.Notification
	audits        []interfaces.AuditRecord
	err           error
}

func (r *recordingNotifier) Notify(_ context.Context, n interfaces.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *recordingNotifier) Audit(_ context.Context, rec interfaces.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.audits = append(r.audits, rec)
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
