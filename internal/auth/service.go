// Package auth はOAuth認証フロー、アイデンティティ解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/campusauth/internal/metrics"
	"github.com/hitoshi/campusauth/internal/model"
	"github.com/hitoshi/campusauth/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*model.Assertion, error)
}

// IdentityResolver はアサーションをアカウントに解決する。
type IdentityResolver interface {
	Resolve(ctx context.Context, assertion model.Assertion) (*model.Account, error)
}

// TokenIssuer はアカウントIDからベアラートークンを発行する。
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	resolver    IdentityResolver
	sessionRepo repository.SessionRepository
	tokens      TokenIssuer
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。collectorはnilでもよい。
func NewService(
	oauth OAuthProvider,
	resolver IdentityResolver,
	sessionRepo repository.SessionRepository,
	tokens TokenIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		resolver:    resolver,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		metrics:     collector,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理する。
// 認可コードを交換し、アイデンティティを解決し、アカウント全体を保持するセッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Account, *model.Session, error) {
	account, session, err := s.handleCallback(ctx, code)
	if err != nil {
		s.recordLogin("", metrics.LoginFailure)
		return nil, nil, err
	}
	s.recordLogin(string(account.Role), metrics.LoginSuccess)
	return account, session, nil
}

func (s *Service) handleCallback(ctx context.Context, code string) (*model.Account, *model.Session, error) {
	// 1. 認可コードをトークンに交換し、プロフィールを取得
	assertion, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. Admin → Faculty → Studentの順でアカウントを解決
	account, err := s.resolver.Resolve(ctx, *assertion)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("account logged in",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	return account, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("account logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentAccount はセッションに保存されたアカウントのスナップショットを返す。
// ストアへの再問い合わせは行わない。
// セッションが存在しない・期限切れの場合は model.ErrUnauthenticated を返す。
func (s *Service) CurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	if sessionID == "" {
		return nil, model.ErrUnauthenticated
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.ErrUnauthenticated
	}

	account, err := Deserialize(session.Data)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// IssueToken はセッションのアカウントに対してベアラートークンを発行する。
func (s *Service) IssueToken(ctx context.Context, sessionID string) (string, *model.Account, error) {
	account, err := s.CurrentAccount(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	tok, err := s.tokens.Issue(account.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return tok, account, nil
}

// createSession はアカウント全体をペイロードとするセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, account *model.Account) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	data, err := Serialize(account)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		AccountID: account.ID,
		Role:      account.Role,
		Data:      data,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLogin(role, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(role, outcome)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
