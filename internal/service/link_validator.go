package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/internal/model"
	"go-share-portal/internal/repository"
	"go-share-portal/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// OutcomeKind 公开链接校验结果。零值是 OutcomeNotFound，永远不会意外放行。
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeExpired
	OutcomeExhausted
	OutcomeNeedsLogin
	OutcomeNeedsPassword
	OutcomeGranted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExpired:
		return "expired"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeNeedsLogin:
		return "needs_login"
	case OutcomeNeedsPassword:
		return "needs_password"
	case OutcomeGranted:
		return "granted"
	default:
		return "not_found"
	}
}

// Outcome 只有 Granted 时才带路径和元数据
type Outcome struct {
	Kind    OutcomeKind
	LinkID  uint
	OwnerID uint
	Path    string
	Meta    *interfaces.FileMeta
	Effects Effects

	passwordSupplied bool
}

func (o Outcome) Granted() bool {
	return o.Kind == OutcomeGranted
}

// Err 把拒绝原因映射成业务错误，Granted 返回 nil
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeGranted:
		return nil
	case OutcomeExpired:
		return ErrLinkExpired
	case OutcomeExhausted:
		return ErrLinkExhausted
	case OutcomeNeedsLogin:
		return ErrLoginRequired
	case OutcomeNeedsPassword:
		if o.passwordSupplied {
			return ErrPasswordIncorrect
		}
		return ErrPasswordRequired
	default:
		return ErrNotFound
	}
}

// LinkAccessRequest 一次公开链接访问。ActorID 为 0 表示匿名访问。
type LinkAccessRequest struct {
	Token    string
	Password string
	ActorID  uint
}

type linkAccess struct {
	req  LinkAccessRequest
	link *model.LinkShare
	now  time.Time
}

// linkCheck 返回 ok=false 时以 deny 作为结果终止
type linkCheck struct {
	name string
	run  func(ctx context.Context, a *linkAccess) (deny OutcomeKind, ok bool, err error)
}

// LinkAccessValidator 按固定顺序执行检查：
// 查找、过期、次数、登录、密码，全部通过后原子占用一次访问名额。
type LinkAccessValidator struct {
	links  repository.LinkRepository
	files  interfaces.FileStat
	now    func() time.Time
	checks []linkCheck
}

type ValidatorOption func(*LinkAccessValidator)

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *LinkAccessValidator) {
		v.now = now
	}
}

// WithFileStat 放行时附带文件元数据
func WithFileStat(files interfaces.FileStat) ValidatorOption {
	return func(v *LinkAccessValidator) {
		v.files = files
	}
}

func NewLinkAccessValidator(links repository.LinkRepository, opts ...ValidatorOption) *LinkAccessValidator {
	v := &LinkAccessValidator{
		links: links,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.checks = []linkCheck{
		{name: "lookup", run: v.checkLookup},
		{name: "expiry", run: checkExpiry},
		{name: "usage", run: checkUsage},
		{name: "login", run: checkLogin},
		{name: "password", run: checkPassword},
	}
	return v
}

// Checks 返回检查的执行顺序
func (v *LinkAccessValidator) Checks() []string {
	names := make([]string, len(v.checks))
	for i, c := range v.checks {
		names[i] = c.name
	}
	return names
}

// Validate 返回的 error 只表示存储故障，此时结果视为拒绝
func (v *LinkAccessValidator) Validate(ctx context.Context, req LinkAccessRequest) (Outcome, error) {
	a := &linkAccess{req: req, now: v.now().UTC()}
	denied := Outcome{passwordSupplied: req.Password != ""}

	for _, check := range v.checks {
		deny, ok, err := check.run(ctx, a)
		if err != nil {
			return denied, fmt.Errorf("link check %s: %w", check.name, err)
		}
		if !ok {
			denied.Kind = deny
			logger.L.Debug("Link access denied",
				zap.String("check", check.name),
				zap.String("outcome", deny.String()),
				zap.Uint("actorID", req.ActorID))
			return denied, nil
		}
	}

	return v.grant(ctx, a, denied)
}

func (v *LinkAccessValidator) grant(ctx context.Context, a *linkAccess, denied Outcome) (Outcome, error) {
	link := a.link

	// 先读元数据再占名额，目标已不存在时不消耗次数
	var meta *interfaces.FileMeta
	if v.files != nil {
		m, err := v.files.Stat(ctx, link.OwnerID, link.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			denied.Kind = OutcomeNotFound
			return denied, nil
		case err != nil:
			return denied, fmt.Errorf("failed to stat link target: %w", err)
		}
		meta = m
	}

	consumed, err := v.links.TryConsume(ctx, link.ID, a.now)
	if err != nil {
		return denied, fmt.Errorf("failed to consume link access: %w", err)
	}
	if !consumed {
		// 并发竞争失败，重新读取以区分被删除、刚好过期和次数用尽
		current, err := v.links.FindByID(ctx, link.ID)
		switch {
		case err != nil:
			return denied, fmt.Errorf("failed to reload link: %w", err)
		case current == nil:
			denied.Kind = OutcomeNotFound
		case current.IsExpired(a.now):
			denied.Kind = OutcomeExpired
		default:
			denied.Kind = OutcomeExhausted
		}
		return denied, nil
	}

	out := Outcome{
		Kind:    OutcomeGranted,
		LinkID:  link.ID,
		OwnerID: link.OwnerID,
		Path:    link.Path,
		Meta:    meta,
	}
	out.Effects.audit(a.req.ActorID, "link.access", link.Path, map[string]any{
		"link_id": link.ID,
	})
	return out, nil
}

func (v *LinkAccessValidator) checkLookup(ctx context.Context, a *linkAccess) (OutcomeKind, bool, error) {
	if a.req.Token == "" {
		return OutcomeNotFound, false, nil
	}
	link, err := v.links.FindByToken(ctx, a.req.Token)
	if err != nil {
		return OutcomeNotFound, false, err
	}
	if link == nil {
		return OutcomeNotFound, false, nil
	}
	a.link = link
	return 0, true, nil
}

func checkExpiry(_ context.Context, a *linkAccess) (OutcomeKind, bool, error) {
	if a.link.IsExpired(a.now) {
		return OutcomeExpired, false, nil
	}
	return 0, true, nil
}

func checkUsage(_ context.Context, a *linkAccess) (OutcomeKind, bool, error) {
	if a.link.IsExhausted() {
		return OutcomeExhausted, false, nil
	}
	return 0, true, nil
}

func checkLogin(_ context.Context, a *linkAccess) (OutcomeKind, bool, error) {
	if a.link.RequireLogin && a.req.ActorID == 0 {
		return OutcomeNeedsLogin, false, nil
	}
	return 0, true, nil
}

func checkPassword(_ context.Context, a *linkAccess) (OutcomeKind, bool, error) {
	if !a.link.HasPassword() {
		return 0, true, nil
	}
	if a.req.Password == "" {
		return OutcomeNeedsPassword, false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*a.link.PasswordHash), []byte(a.req.Password)); err != nil {
		return OutcomeNeedsPassword, false, nil
	}
	return 0, true, nil
}
