package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthChecker は依存先の疎通確認を行う。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthCheckFunc は関数をHealthCheckerとして扱うためのアダプタ。
type HealthCheckFunc func(ctx context.Context) error

// PingContext はHealthCheckerを実装する。
func (f HealthCheckFunc) PingContext(ctx context.Context) error { return f(ctx) }

const healthCheckTimeout = 3 * time.Second

// NewHealthHandler はすべての依存先の疎通を確認するハンドラーを返す。
// GET /health
// すべて成功すれば200、1つでも失敗すれば503を返す。
func NewHealthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name].PingContext(ctx); err != nil {
				slog.Warn("health check failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()),
				)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}
