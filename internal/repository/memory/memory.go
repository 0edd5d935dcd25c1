// Package memory 提供仓库接口的内存实现，用于测试和 database.driver=memory 的开发模式。
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
)

var (
	_ repository.UserRepository  = (*UserRepository)(nil)
	_ repository.ShareRepository = (*ShareRepository)(nil)
	_ repository.LinkRepository  = (*LinkRepository)(nil)
	_ repository.AuditRepository = (*AuditRepository)(nil)
)

type UserRepository struct {
	mu     sync.RWMutex
	nextID uint
	users  map[uint]model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uint]model.User)}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id uint) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username }), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email }), nil
}

func (r *UserRepository) find(match func(model.User) bool) *model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			u := u
			return &u
		}
	}
	return nil
}

func (r *UserRepository) Search(_ context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.User
	for _, u := range r.users {
		if !u.Active || u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetActive 测试辅助：启用或停用用户
func (r *UserRepository) SetActive(id uint, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Active = active
		r.users[id] = u
	}
}

type ShareRepository struct {
	mu     sync.RWMutex
	nextID uint
	shares map[uint]model.FileShare
	// Err 非空时所有操作都返回它，用于模拟存储故障
	Err error
}

func NewShareRepository() *ShareRepository {
	return &ShareRepository{shares: make(map[uint]model.FileShare)}
}

func (r *ShareRepository) Upsert(_ context.Context, share *model.FileShare) (*model.FileShare, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, false, r.Err
	}

	now := time.Now()
	for id, s := range r.shares {
		if s.ItemPath == share.ItemPath && s.OwnerID == share.OwnerID && s.SharedWithID == share.SharedWithID {
			s.PermissionLevel = share.PermissionLevel
			s.Message = share.Message
			s.UpdatedAt = now
			r.shares[id] = s
			return &s, false, nil
		}
	}

	r.nextID++
	record := *share
	record.ID = r.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.shares[record.ID] = record
	return &record, true, nil
}

func (r *ShareRepository) FindByID(_ context.Context, id uint) (*model.FileShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if s, ok := r.shares[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *ShareRepository) UpdateLevel(_ context.Context, id uint, level model.PermissionLevel) (*model.FileShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.shares[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.PermissionLevel = level
	s.UpdatedAt = time.Now()
	r.shares[id] = s
	return &s, nil
}

func (r *ShareRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.shares[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.shares, id)
	return nil
}

func (r *ShareRepository) ListByOwner(_ context.Context, ownerID uint) ([]model.FileShare, error) {
	return r.filter(func(s model.FileShare) bool { return s.OwnerID == ownerID })
}

func (r *ShareRepository) ListByGrantee(_ context.Context, granteeID uint) ([]model.FileShare, error) {
	return r.filter(func(s model.FileShare) bool { return s.SharedWithID == granteeID })
}

func (r *ShareRepository) ListForPath(_ context.Context, ownerID uint, itemPath string) ([]model.FileShare, error) {
	return r.filter(func(s model.FileShare) bool { return s.OwnerID == ownerID && s.ItemPath == itemPath })
}

func (r *ShareRepository) FindExact(_ context.Context, itemPath string, granteeID uint) ([]model.FileShare, error) {
	return r.filter(func(s model.FileShare) bool { return s.ItemPath == itemPath && s.SharedWithID == granteeID })
}

func (r *ShareRepository) ListFolderGrants(_ context.Context, granteeID uint) ([]model.FileShare, error) {
	return r.filter(func(s model.FileShare) bool { return s.IsFolder && s.SharedWithID == granteeID })
}

func (r *ShareRepository) filter(match func(model.FileShare) bool) ([]model.FileShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []model.FileShare
	for _, s := range r.shares {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type LinkRepository struct {
	mu     sync.RWMutex
	nextID uint
	links  map[uint]model.LinkShare
	Err    error
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{links: make(map[uint]model.LinkShare)}
}

func (r *LinkRepository) Create(_ context.Context, link *model.LinkShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, l := range r.links {
		if l.Token == link.Token {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	link.ID = r.nextID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	r.links[link.ID] = *link
	return nil
}

func (r *LinkRepository) FindByID(_ context.Context, id uint) (*model.LinkShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if l, ok := r.links[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (r *LinkRepository) FindByToken(_ context.Context, token string) (*model.LinkShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, l := range r.links {
		if l.Token == token {
			return &l, nil
		}
	}
	return nil, nil
}

func (r *LinkRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.links[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.links, id)
	return nil
}

func (r *LinkRepository) ListByOwner(_ context.Context, ownerID uint) ([]model.LinkShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []model.LinkShare
	for _, l := range r.links {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// TryConsume 在写锁内完成检查和自增
func (r *LinkRepository) TryConsume(_ context.Context, id uint, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	l, ok := r.links[id]
	if !ok || l.IsExpired(now) || l.IsExhausted() {
		return false, nil
	}
	l.AccessCount++
	r.links[id] = l
	return true, nil
}

type AuditRepository struct {
	mu      sync.Mutex
	nextID  uint
	entries []model.AuditLog
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *AuditRepository) ListByActor(_ context.Context, actorID uint, limit int) ([]model.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ActorID == actorID {
			out = append(out, r.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *AuditRepository) Audit(ctx context.Context, rec interfaces.AuditRecord) error {
	entry, err := repository.AuditLogFromRecord(rec)
	if err != nil {
		return err
	}
	return r.Create(ctx, entry)
}
