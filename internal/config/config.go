// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// セッションストアの種類。
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OAuth
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL,required,notEmpty"`
	GoogleAuthURL      string        `env:"GOOGLE_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/auth"`
	GoogleTokenURL     string        `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	GoogleUserInfoURL  string        `env:"GOOGLE_USERINFO_URL" envDefault:"https://www.googleapis.com/oauth2/v3/userinfo"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	// Token
	// TokenKeysが設定されている場合はJWTSecretより優先する。
	JWTSecret string        `env:"JWT_SECRET"`
	TokenKeys string        `env:"TOKEN_KEYS"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// Session
	SessionStore    string        `env:"SESSION_STORE" envDefault:"postgres"`
	SessionMaxAge   int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	// Redis（SESSION_STORE=redis の場合のみ使用）
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"campusauth:session:"`

	// Rate Limit（req/min/account）
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Bootstrap
	BootstrapAdminEmail string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminName  string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Administrator"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"5001"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Cookie
	// COOKIE_SECUREが未設定の場合はGOOGLE_REDIRECT_URLがhttpsかどうかで決める。
	CookieSecure bool   `env:"COOKIE_SECURE"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS（カンマ区切りで複数指定可）
	// 未設定の場合はFRONTEND_URLを使用する。
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定されている環境変数は.envで上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if _, ok := os.LookupEnv("COOKIE_SECURE"); !ok {
		cfg.CookieSecure = strings.HasPrefix(cfg.GoogleRedirectURL, "https://")
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = cfg.FrontendURL
	}
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecret == "" && c.TokenKeys == "" {
		errs = append(errs, errors.New("either JWT_SECRET or TOKEN_KEYS must be set"))
	}
	if c.SessionStore != SessionStorePostgres && c.SessionStore != SessionStoreRedis {
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q",
			SessionStorePostgres, SessionStoreRedis, c.SessionStore))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
