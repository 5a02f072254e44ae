package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/campusauth/internal/metrics"
	"github.com/hitoshi/campusauth/internal/model"
	"github.com/hitoshi/campusauth/internal/repository"
	"github.com/hitoshi/campusauth/internal/security"
)

// Resolver は外部IdPのアサーションを3つのアカウントストアのいずれかに対応付ける。
//
// 探索順序はAdmin → Faculty → Studentで固定。どのストアにも存在しない場合は
// Adminストアに新規アカウントを作成する。
type Resolver struct {
	stores    []repository.AccountRepository
	byRole    map[model.Role]repository.AccountRepository
	sanitizer *security.ProfileSanitizer
	guard     *security.URLGuard
	metrics   metrics.MetricsCollector

	now   func() time.Time
	newID func() string
}

// NewResolver はResolverを生成する。
// storesは順不同で渡してよいが、model.ResolutionOrder()の全ロールが揃っている必要がある。
// collectorはnilでもよい。
func NewResolver(stores []repository.AccountRepository, collector metrics.MetricsCollector) (*Resolver, error) {
	byRole := make(map[model.Role]repository.AccountRepository, len(stores))
	for _, s := range stores {
		if s == nil {
			return nil, fmt.Errorf("nil account store")
		}
		if _, dup := byRole[s.Role()]; dup {
			return nil, fmt.Errorf("duplicate account store for role %q", s.Role())
		}
		byRole[s.Role()] = s
	}

	ordered := make([]repository.AccountRepository, 0, len(model.ResolutionOrder()))
	for _, role := range model.ResolutionOrder() {
		s, ok := byRole[role]
		if !ok {
			return nil, fmt.Errorf("missing account store for role %q", role)
		}
		ordered = append(ordered, s)
	}

	return &Resolver{
		stores:    ordered,
		byRole:    byRole,
		sanitizer: security.NewProfileSanitizer(),
		guard:     security.NewURLGuard(),
		metrics:   collector,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// Resolve はアサーションのメールアドレスでストアを順に探索し、アカウントを返す。
// 返却されるアカウントのRoleは、レコードを返したストアのロールになる。
//
// エラー:
//   - メールアドレスが空の場合は model.ErrInvalidAssertion
//   - ストアへのアクセスに失敗した場合は model.ErrResolutionFailed
func (r *Resolver) Resolve(ctx context.Context, assertion model.Assertion) (*model.Account, error) {
	start := r.now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordResolveLatency(r.now().Sub(start))
		}
	}()

	if strings.TrimSpace(assertion.Email) == "" {
		r.recordFailure("invalid_assertion")
		return nil, fmt.Errorf("%w: email is required", model.ErrInvalidAssertion)
	}

	for _, store := range r.stores {
		account, err := store.FindByEmail(ctx, assertion.Email)
		if err != nil {
			r.recordFailure("store_error")
			return nil, fmt.Errorf("%w: lookup in %s store: %w", model.ErrResolutionFailed, store.Role(), err)
		}
		if account != nil {
			account.Role = store.Role()
			return account, nil
		}
	}

	return r.createDefault(ctx, assertion)
}

// createDefault は未登録のアイデンティティをAdminストアに作成する。
// 一意制約違反（同時初回ログイン）の場合はAdminストアを1回だけ再読込し、先に作成されたレコードを返す。
func (r *Resolver) createDefault(ctx context.Context, assertion model.Assertion) (*model.Account, error) {
	store := r.byRole[model.RoleAdmin]
	now := r.now()

	account := &model.Account{
		ID:        r.newID(),
		Name:      r.sanitizer.DisplayName(assertion.Name),
		Email:     assertion.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if assertion.Avatar != "" {
		if err := r.guard.ValidateAvatarURL(assertion.Avatar); err != nil {
			slog.Warn("dropping avatar from identity assertion",
				slog.String("email", assertion.Email),
				slog.String("error", err.Error()),
			)
		} else {
			account.Avatar = assertion.Avatar
		}
	}

	err := store.Create(ctx, account)
	if errors.Is(err, model.ErrDuplicateEmail) {
		existing, findErr := store.FindByEmail(ctx, assertion.Email)
		if findErr != nil {
			r.recordFailure("store_error")
			return nil, fmt.Errorf("%w: re-read after duplicate: %w", model.ErrResolutionFailed, findErr)
		}
		if existing == nil {
			r.recordFailure("store_error")
			return nil, fmt.Errorf("%w: account vanished after duplicate email", model.ErrResolutionFailed)
		}
		existing.Role = store.Role()
		return existing, nil
	}
	if err != nil {
		r.recordFailure("store_error")
		return nil, fmt.Errorf("%w: create in %s store: %w", model.ErrResolutionFailed, store.Role(), err)
	}

	account.Role = store.Role()
	if r.metrics != nil {
		r.metrics.RecordAccountCreated(string(account.Role))
	}
	slog.Info("new account created",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
		slog.String("email", account.Email),
	)
	return account, nil
}

// SeedAdmin は指定メールアドレスのAdminアカウントが存在しなければ作成する。
// 起動時の初期管理者投入に使う。他のストアに同じメールアドレスがあっても考慮しない。
func (r *Resolver) SeedAdmin(ctx context.Context, email, name string) (*model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", model.ErrInvalidAssertion)
	}

	store := r.byRole[model.RoleAdmin]
	existing, err := store.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup in %s store: %w", model.ErrResolutionFailed, store.Role(), err)
	}
	if existing != nil {
		existing.Role = store.Role()
		return existing, nil
	}

	return r.createDefault(ctx, model.Assertion{Email: email, Name: name})
}

// FindAccount はロールのストアからIDでアカウントを取得する。
// 存在しない場合は model.ErrAccountNotFound を返す。
func (r *Resolver) FindAccount(ctx context.Context, role model.Role, id string) (*model.Account, error) {
	store, ok := r.byRole[role]
	if !ok {
		return nil, fmt.Errorf("unknown role %q: %w", role, model.ErrAccountNotFound)
	}

	account, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s account: %w", role, err)
	}
	if account == nil {
		return nil, model.ErrAccountNotFound
	}
	account.Role = role
	return account, nil
}

func (r *Resolver) recordFailure(reason string) {
	if r.metrics != nil {
		r.metrics.RecordResolutionFailure(reason)
	}
}
