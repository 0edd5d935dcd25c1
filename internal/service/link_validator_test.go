package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStat struct {
	meta *interfaces.FileMeta
	err  error
}

func (f fakeStat) Stat(_ context.Context, _ uint, virtualPath string) (*interfaces.FileMeta, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.meta != nil {
		return f.meta, nil
	}
	return &interfaces.FileMeta{Name: virtualPath}, nil
}

func saveLink(t *testing.T, repo *memory.LinkRepository, link model.LinkShare) *model.LinkShare {
	t.Helper()
	if link.Token == "" {
		link.Token = fmt.Sprintf("tok%d", time.Now().UnixNano())
	}
	if link.Path == "" {
		link.Path = "/home/report.pdf"
	}
	if link.OwnerID == 0 {
		link.OwnerID = 1
	}
	require.NoError(t, repo.Create(context.Background(), &link))
	return &link
}

func hashed(t *testing.T, pw string) *string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(h)
	return &s
}

func TestLinkAccessValidator_CheckOrder(t *testing.T) {
	v := NewLinkAccessValidator(memory.NewLinkRepository())
	assert.Equal(t, []string{"lookup", "expiry", "usage", "login", "password"}, v.Checks())
}

func TestLinkAccessValidator_Outcomes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	links := memory.NewLinkRepository()
	v := NewLinkAccessValidator(links, WithClock(func() time.Time { return now }))

	open := saveLink(t, links, model.LinkShare{Token: "open"})
	saveLink(t, links, model.LinkShare{Token: "expired", ExpiresAt: &past, PasswordHash: hashed(t, "pw"), RequireLogin: true})
	saveLink(t, links, model.LinkShare{Token: "boundary", ExpiresAt: &now})
	saveLink(t, links, model.LinkShare{Token: "used", MaxAccess: int64Ptr(2), AccessCount: 2, RequireLogin: true})
	saveLink(t, links, model.LinkShare{Token: "login", RequireLogin: true, PasswordHash: hashed(t, "pw")})
	saveLink(t, links, model.LinkShare{Token: "pw", PasswordHash: hashed(t, "s3cret"), ExpiresAt: &future})

	tests := []struct {
		name    string
		req     LinkAccessRequest
		want    OutcomeKind
		wantErr error
	}{
		{"unknown token", LinkAccessRequest{Token: "nope"}, OutcomeNotFound, ErrNotFound},
		{"empty token", LinkAccessRequest{}, OutcomeNotFound, ErrNotFound},
		{"expired beats login and password", LinkAccessRequest{Token: "expired"}, OutcomeExpired, ErrLinkExpired},
		{"expired at exactly expiresAt", LinkAccessRequest{Token: "boundary"}, OutcomeExpired, ErrLinkExpired},
		{"exhausted beats login", LinkAccessRequest{Token: "used"}, OutcomeExhausted, ErrLinkExhausted},
		{"login before password", LinkAccessRequest{Token: "login", Password: "pw"}, OutcomeNeedsLogin, ErrLoginRequired},
		{"logged in then password", LinkAccessRequest{Token: "login", ActorID: 7}, OutcomeNeedsPassword, ErrPasswordRequired},
		{"missing password", LinkAccessRequest{Token: "pw"}, OutcomeNeedsPassword, ErrPasswordRequired},
		{"wrong password", LinkAccessRequest{Token: "pw", Password: "guess"}, OutcomeNeedsPassword, ErrPasswordIncorrect},
		{"correct password", LinkAccessRequest{Token: "pw", Password: "s3cret"}, OutcomeGranted, nil},
		{"logged in with password", LinkAccessRequest{Token: "login", Password: "pw", ActorID: 7}, OutcomeGranted, nil},
		{"open link", LinkAccessRequest{Token: "open"}, OutcomeGranted, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := v.Validate(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Kind, out.Kind.String())
			if tt.wantErr == nil {
				assert.NoError(t, out.Err())
				assert.NotEmpty(t, out.Path)
				require.Len(t, out.Effects.Audits, 1)
				assert.Equal(t, "link.access", out.Effects.Audits[0].Action)
			} else {
				assert.ErrorIs(t, out.Err(), tt.wantErr)
				assert.Empty(t, out.Path, "denied outcomes carry no path")
				assert.Nil(t, out.Meta)
			}
		})
	}

	stored, err := links.FindByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AccessCount)
}

func TestLinkAccessValidator_DeniedDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	links := memory.NewLinkRepository()
	v := NewLinkAccessValidator(links)
	link := saveLink(t, links, model.LinkShare{Token: "pw", PasswordHash: hashed(t, "right"), MaxAccess: int64Ptr(1)})

	for i := 0; i < 3; i++ {
		out, err := v.Validate(ctx, LinkAccessRequest{Token: "pw", Password: "wrong"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNeedsPassword, out.Kind)
	}
	out, err := v.Validate(ctx, LinkAccessRequest{Token: "pw", Password: "right"})
	require.NoError(t, err)
	assert.True(t, out.Granted())

	out, err = v.Validate(ctx, LinkAccessRequest{Token: "pw", Password: "right"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, out.Kind)

	stored, err := links.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AccessCount)
}

func TestLinkAccessValidator_ConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	links := memory.NewLinkRepository()
	v := NewLinkAccessValidator(links)
	saveLink(t, links, model.LinkShare{Token: "once", MaxAccess: int64Ptr(1)})

	const workers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		granted   int
		exhausted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := v.Validate(ctx, LinkAccessRequest{Token: "once"})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch out.Kind {
			case OutcomeGranted:
				granted++
			case OutcomeExhausted:
				exhausted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, workers-1, exhausted)
}

func TestLinkAccessValidator_Metadata(t *testing.T) {
	ctx := context.Background()
	links := memory.NewLinkRepository()
	meta := &interfaces.FileMeta{Name: "report.pdf", Size: 42}

	v := NewLinkAccessValidator(links, WithFileStat(fakeStat{meta: meta}))
	link := saveLink(t, links, model.LinkShare{Token: "m", MaxAccess: int64Ptr(5)})
	out, err := v.Validate(ctx, LinkAccessRequest{Token: "m"})
	require.NoError(t, err)
	require.True(t, out.Granted())
	assert.Equal(t, meta, out.Meta)
	assert.Equal(t, link.OwnerID, out.OwnerID)

	// 目标文件已不存在：拒绝且不消耗次数
	gone := NewLinkAccessValidator(links, WithFileStat(fakeStat{err: fmt.Errorf("stat: %w", fs.ErrNotExist)}))
	out, err = gone.Validate(ctx, LinkAccessRequest{Token: "m"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out.Kind)

	broken := NewLinkAccessValidator(links, WithFileStat(fakeStat{err: errors.New("io error")}))
	out, err = broken.Validate(ctx, LinkAccessRequest{Token: "m"})
	assert.Error(t, err)
	assert.False(t, out.Granted())

	stored, err := links.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AccessCount)
}

func TestLinkAccessValidator_StorageFailureDenies(t *testing.T) {
	ctx := context.Background()
	links := memory.NewLinkRepository()
	saveLink(t, links, model.LinkShare{Token: "x"})
	links.Err = errors.New("db down")

	v := NewLinkAccessValidator(links)
	out, err := v.Validate(ctx, LinkAccessRequest{Token: "x"})
	assert.Error(t, err)
	assert.False(t, out.Granted())
	assert.Error(t, out.Err())
}
