package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/campusauth/internal/metrics"
	"github.com/hitoshi/campusauth/internal/model"
	"github.com/hitoshi/campusauth/internal/token"
)

// TokenVerifier はベアラートークンを検証し、アカウントIDを返す。
// token.Codecが実装する。
type TokenVerifier interface {
	Verify(tok string) (string, error)
}

// gateDecision はAuth Gateの1リクエスト分の判定結果。
type gateDecision struct {
	userID  string
	outcome string
	status  int
	message string
}

// NewTokenAuthMiddleware は保護されたAPIルート用のAuth Gateを返す。
//
// 各リクエストは次のいずれか1つに分類される。
//   - Authorizationヘッダーなし: 401 "Authorization token missing"
//   - 空白区切りの2番目の値がない: 401 "Invalid token format"
//   - トークン検証失敗: 401 "Invalid or expired token"
//   - 想定外のエラー・panic: 500 "Server error in authentication"
//   - 検証成功: アカウントIDをコンテキストに注入して通過
//
// collectorはnilでもよい。
func NewTokenAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := decide(verifier, r.Header.Get("Authorization"))
			if collector != nil {
				collector.RecordGateDecision(d.outcome)
			}

			if d.outcome != metrics.GateAllowed {
				WriteMessage(w, d.status, d.message)
				return
			}

			ctx := ContextWithUserID(r.Context(), d.userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decide はAuthorizationヘッダーを分類する。
// 検証中のpanicはInternalErrorとして扱い、呼び出し元に伝播させない。
func decide(verifier TokenVerifier, header string) (d gateDecision) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in auth gate", slog.Any("panic", rec))
			d = serverError()
		}
	}()

	if header == "" {
		return gateDecision{
			outcome: metrics.GateMissing,
			status:  http.StatusUnauthorized,
			message: model.MsgTokenMissing,
		}
	}

	// スキーム名は検証しない。2番目のフィールドをトークンとみなす。
	parts := strings.Split(header, " ")
	if len(parts) < 2 || parts[1] == "" {
		return gateDecision{
			outcome: metrics.GateBadFormat,
			status:  http.StatusUnauthorized,
			message: model.MsgInvalidTokenFormat,
		}
	}

	userID, err := verifier.Verify(parts[1])
	switch {
	case err == nil:
		return gateDecision{userID: userID, outcome: metrics.GateAllowed}
	case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrInvalidSignature):
		return gateDecision{
			outcome: metrics.GateInvalid,
			status:  http.StatusUnauthorized,
			message: model.MsgInvalidOrExpired,
		}
	default:
		slog.Error("unexpected token verification error", slog.String("error", fmt.Sprint(err)))
		return serverError()
	}
}

func serverError() gateDecision {
	return gateDecision{
		outcome: metrics.GateServerError,
		status:  http.StatusInternalServerError,
		message: model.MsgAuthenticationError,
	}
}
