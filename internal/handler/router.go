package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/campusauth/internal/metrics"
	"github.com/hitoshi/campusauth/internal/middleware"
	"github.com/hitoshi/campusauth/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	SessionLoader     middleware.SessionLoader

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アカウント
	AccountFinder AccountFinder

	// ヘルスチェック
	HealthChecks map[string]HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通: Logging → Recovery → SecurityHeaders → CORS
//
// /auth/* はセッションCookieで認証し、状態変更はCSRF検証を課す。
// /api/{role}/* はAuth Gate → RateLimit の順に通過させる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	accountHandler := NewAccountHandler(deps.AccountFinder)

	r.Get("/health", NewHealthHandler(deps.HealthChecks))

	// --- 認証ルート（OAuthフローとセッション） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.With(middleware.NewSessionMiddleware(deps.SessionLoader)).Get("/me", authHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
			r.Post("/token", authHandler.Token)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- ロール別API（ベアラートークン） ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewTokenAuthMiddleware(deps.TokenVerifier, deps.Metrics))
		r.Use(deps.RateLimiter.Middleware())

		for _, role := range model.ResolutionOrder() {
			r.Route("/"+string(role), func(r chi.Router) {
				r.Get("/me", accountHandler.Me(role))
			})
		}
	})

	return r
}
