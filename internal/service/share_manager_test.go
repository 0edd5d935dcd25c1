package service

import (
	"context"
	"errors"
	"testing"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shareFixture struct {
	manager *ShareManager
	shares  *memory.ShareRepository
	users   *memory.UserRepository
	owner   uint
	bob     uint
	carol   uint
}

func newShareFixture(t *testing.T) *shareFixture {
	shares := memory.NewShareRepository()
	users := memory.NewUserRepository()
	ids := seedUsers(t, users, "alice", "bob", "carol")
	return &shareFixture{
		manager: NewShareManager(shares, users, []string{"/home", "/shared"}),
		shares:  shares,
		users:   users,
		owner:   ids[0],
		bob:     ids[1],
		carol:   ids[2],
	}
}

func TestShareManager_Create(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	res, err := f.manager.Create(ctx, CreateShareRequest{
		OwnerID:      f.owner,
		ItemPath:     "/home/docs/",
		IsFolder:     true,
		SharedWithID: f.bob,
		Level:        model.PermissionReadOnly,
		Message:      strPtr("take a look"),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "/home/docs", res.Share.ItemPath)
	assert.Equal(t, "docs", res.Share.ItemName, "name defaults to the last path segment")

	require.Len(t, res.Effects.Notifications, 1)
	n := res.Effects.Notifications[0]
	assert.Equal(t, f.bob, n.RecipientID)
	assert.Equal(t, interfaces.NotificationShareCreated, n.Kind)
	assert.Contains(t, n.Message, "alice")
	require.Len(t, res.Effects.Audits, 1)
	assert.Equal(t, "share.create", res.Effects.Audits[0].Action)
}

func TestShareManager_CreateRejects(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)
	f.users.SetActive(f.carol, false)

	base := CreateShareRequest{
		OwnerID:      f.owner,
		ItemPath:     "/home/docs",
		SharedWithID: f.bob,
		Level:        model.PermissionReadOnly,
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateShareRequest)
		wantErr error
	}{
		{"self share", func(r *CreateShareRequest) { r.SharedWithID = f.owner }, ErrSelfShare},
		{"self share wins over bad path", func(r *CreateShareRequest) { r.SharedWithID = f.owner; r.ItemPath = "/etc/passwd" }, ErrSelfShare},
		{"missing path", func(r *CreateShareRequest) { r.ItemPath = "" }, ErrValidation},
		{"invalid level", func(r *CreateShareRequest) { r.Level = model.PermissionNone }, ErrValidation},
		{"outside allowed roots", func(r *CreateShareRequest) { r.ItemPath = "/etc/passwd" }, ErrPathNotAllowed},
		{"root itself", func(r *CreateShareRequest) { r.ItemPath = "/home" }, ErrPathNotAllowed},
		{"unknown grantee", func(r *CreateShareRequest) { r.SharedWithID = 999 }, ErrUserNotFound},
		{"inactive grantee", func(r *CreateShareRequest) { r.SharedWithID = f.carol }, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			res, err := f.manager.Create(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}

	all, err := f.manager.ListByOwner(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected commands must not persist anything")
}

func TestShareManager_ReshareUpserts(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	req := CreateShareRequest{
		OwnerID:      f.owner,
		ItemPath:     "/shared/plan.md",
		SharedWithID: f.bob,
		Level:        model.PermissionReadOnly,
	}
	first, err := f.manager.Create(ctx, req)
	require.NoError(t, err)

	req.Level = model.PermissionReadWrite
	req.Message = strPtr("now editable")
	second, err := f.manager.Create(ctx, req)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Share.ID, second.Share.ID)
	assert.Equal(t, model.PermissionReadWrite, second.Share.PermissionLevel)
	assert.Equal(t, "share.update", second.Effects.Audits[0].Action)

	rows, err := f.manager.ListForPath(ctx, f.owner, "/shared/plan.md")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.PermissionReadWrite, rows[0].PermissionLevel)
	require.NotNil(t, rows[0].Message)
	assert.Equal(t, "now editable", *rows[0].Message)
}

func TestShareManager_ReshareKeepsItemKind(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)
	resolver := NewPermissionResolver(f.shares)

	req := CreateShareRequest{
		OwnerID:      f.owner,
		ItemPath:     "/home/notes",
		ItemName:     "notes",
		SharedWithID: f.bob,
		Level:        model.PermissionReadOnly,
	}
	_, err := f.manager.Create(ctx, req)
	require.NoError(t, err)

	req.IsFolder = true
	req.ItemName = "renamed"
	req.Level = model.PermissionReadWrite
	res, err := f.manager.Create(ctx, req)
	require.NoError(t, err)

	assert.False(t, res.Share.IsFolder)
	assert.Equal(t, "notes", res.Share.ItemName)
	assert.Equal(t, model.PermissionReadWrite, res.Share.PermissionLevel)
	assert.True(t, resolver.Resolve(ctx, f.bob, "/home/notes", model.PermissionReadWrite))
	assert.False(t, resolver.Resolve(ctx, f.bob, "/home/notes/secret.txt", model.PermissionReadOnly))
}

func TestShareManager_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	res, err := f.manager.Create(ctx, CreateShareRequest{
		OwnerID:      f.owner,
		ItemPath:     "/home/a.txt",
		SharedWithID: f.bob,
		Level:        model.PermissionReadOnly,
	})
	require.NoError(t, err)
	id := res.Share.ID

	_, err = f.manager.Update(ctx, f.bob, id, model.PermissionReadWrite)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = f.manager.Update(ctx, f.owner, 999, model.PermissionReadWrite)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.manager.Update(ctx, f.owner, id, model.PermissionLevel(7))
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.manager.Update(ctx, f.owner, id, model.PermissionReadWrite)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionReadWrite, updated.Share.PermissionLevel)
	require.Len(t, updated.Effects.Notifications, 1)
	assert.Equal(t, interfaces.NotificationShareUpdated, updated.Effects.Notifications[0].Kind)

	_, err = f.manager.Delete(ctx, f.carol, id)
	assert.ErrorIs(t, err, ErrNotOwner)

	effects, err := f.manager.Delete(ctx, f.owner, id)
	require.NoError(t, err)
	require.Len(t, effects.Notifications, 1)
	assert.Equal(t, interfaces.NotificationShareRemoved, effects.Notifications[0].Kind)
	assert.Equal(t, f.bob, effects.Notifications[0].RecipientID)

	_, err = f.manager.Delete(ctx, f.owner, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareManager_Lists(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	for _, p := range []string{"/home/one", "/home/two"} {
		_, err := f.manager.Create(ctx, CreateShareRequest{OwnerID: f.owner, ItemPath: p, SharedWithID: f.bob, Level: model.PermissionReadOnly})
		require.NoError(t, err)
	}
	_, err := f.manager.Create(ctx, CreateShareRequest{OwnerID: f.owner, ItemPath: "/home/one", SharedWithID: f.carol, Level: model.PermissionReadWrite})
	require.NoError(t, err)

	owned, err := f.manager.ListByOwner(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	received, err := f.manager.ListByGrantee(ctx, f.bob)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	forPath, err := f.manager.ListForPath(ctx, f.owner, "home/one/")
	require.NoError(t, err)
	assert.Len(t, forPath, 2)

	_, err = f.manager.ListForPath(ctx, f.owner, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestShareManager_StorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)
	storageErr := errors.New("disk full")
	f.shares.Err = storageErr

	_, err := f.manager.Create(ctx, CreateShareRequest{OwnerID: f.owner, ItemPath: "/home/a", SharedWithID: f.bob, Level: model.PermissionReadOnly})
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestShareManager_SearchCandidateUsers(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	users, err := f.manager.SearchCandidateUsers(ctx, f.owner, "example.com", 0)
	require.NoError(t, err)
	require.Len(t, users, 2, "the caller is excluded")
	for _, u := range users {
		assert.NotEqual(t, f.owner, u.ID)
	}

	users, err = f.manager.SearchCandidateUsers(ctx, f.owner, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = f.manager.SearchCandidateUsers(ctx, f.owner, "o", 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
