package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/campusauth/internal/auth"
	"github.com/hitoshi/campusauth/internal/config"
	"github.com/hitoshi/campusauth/internal/database"
	"github.com/hitoshi/campusauth/internal/handler"
	"github.com/hitoshi/campusauth/internal/metrics"
	"github.com/hitoshi/campusauth/internal/middleware"
	"github.com/hitoshi/campusauth/internal/repository"
	"github.com/hitoshi/campusauth/internal/security"
	"github.com/hitoshi/campusauth/internal/token"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// components はserveモードで使用する依存関係一式。
type components struct {
	db          *sql.DB
	sessions    *sessionStore
	codec       *token.Codec
	resolver    *auth.Resolver
	authService *auth.Service
	limiter     *middleware.RateLimiter
}

// newComponents はDB接続を開き、ストア・コーデック・リゾルバー・認証サービスを構築する。
func newComponents(ctx context.Context, cfg *config.Config, collector metrics.MetricsCollector) (*components, error) {
	c := &components{}

	// 1. DB接続
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	c.db = db

	// 2. ストアの初期化
	accountRepos, err := repository.NewPostgresAccountRepos(db)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.sessions, err = newSessionStore(ctx, cfg, db)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 3. トークンコーデック
	c.codec, err = newCodec(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 4. アイデンティティ解決と認証サービス
	c.resolver, err = auth.NewResolver(accountRepos, collector)
	if err != nil {
		c.Close()
		return nil, err
	}

	guard := security.NewURLGuard()
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		UserInfoURL:  cfg.GoogleUserInfoURL,
		HTTPClient:   guard.NewSafeClient(cfg.OAuthTimeout),
	})

	c.authService = auth.NewService(
		oauthProvider, c.resolver, c.sessions.repo, c.codec, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 5. レート制限
	c.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitPerMinute))

	return c, nil
}

// router はAPIサーバーのハンドラーを構築する。
func (c *components) router(cfg *config.Config, collector metrics.MetricsCollector) http.Handler {
	healthChecks := map[string]handler.HealthChecker{
		"database": c.db,
	}
	if c.sessions.ping != nil {
		healthChecks["sessions"] = c.sessions.ping
	}

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:   c.limiter,
		TokenVerifier: c.codec,
		SessionLoader: c.authService,
		AuthService:   c.authService,
		AuthConfig: handler.AuthHandlerConfig{
			Destinations:  auth.DefaultDestinations(cfg.FrontendURL),
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		AccountFinder: c.resolver,
		HealthChecks:  healthChecks,
	})
}

// Close は保持しているリソースを解放する。nilのフィールドは無視する。
func (c *components) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
	if c.sessions != nil {
		c.sessions.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Connect(ctx, databaseURL, database.DefaultPoolConfig, pingTimeout)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// sessionStore はSESSION_STOREに応じて選択されたセッションストア。
type sessionStore struct {
	repo  repository.SessionRepository
	ping  handler.HealthCheckFunc // Redisの場合のみ設定される
	close func() error
}

// Close はストア固有の接続を閉じる。
func (s *sessionStore) Close() {
	if s.close != nil {
		if err := s.close(); err != nil {
			slog.Warn("failed to close session store", slog.String("error", err.Error()))
		}
	}
}

// newSessionStore はSESSION_STOREに応じたセッションストアを生成する。
// postgresの場合はアカウントと同じDBを使用する。
func newSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (*sessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		return &sessionStore{repo: repository.NewPostgresSessionRepo(db)}, nil

	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
		return &sessionStore{
			repo:  repository.NewRedisSessionRepo(client, cfg.RedisKeyPrefix),
			ping:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// newCodec はTOKEN_KEYS（なければJWT_SECRET）からトークンコーデックを生成する。
func newCodec(cfg *config.Config) (*token.Codec, error) {
	keys, err := token.ParseKeys(cfg.TokenKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_KEYS: %w", err)
	}
	if len(keys) == 0 {
		if cfg.JWTSecret == "" {
			return nil, errors.New("no token signing key configured")
		}
		keys = []token.Key{{ID: token.DefaultKeyID, Secret: []byte(cfg.JWTSecret)}}
	}

	codec, err := token.NewCodec(token.Config{Keys: keys, TTL: cfg.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}
	return codec, nil
}
