// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campusauth/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにアカウントIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// accountContextKey はセッションから復元したアカウントを格納するためのキー。
	accountContextKey = contextKey("account")
)

// SessionLoader はセッションIDからアカウントのスナップショットを取得する。
// auth.Serviceが実装する。
type SessionLoader interface {
	CurrentAccount(ctx context.Context, sessionID string) (*model.Account, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 保存されたアカウント全体をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteMessage(w, http.StatusUnauthorized, "Not logged in")
				return
			}

			// 2. セッションのスナップショットを取得
			account, err := loader.CurrentAccount(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, model.ErrUnauthenticated) {
					slog.Error("failed to load session",
						slog.String("error", err.Error()),
					)
				}
				WriteMessage(w, http.StatusUnauthorized, "Not logged in")
				return
			}

			// 3. アカウントとIDをコンテキストに注入
			ctx := ContextWithAccount(r.Context(), account)
			ctx = ContextWithUserID(ctx, account.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからアカウントIDを取得する。
// Auth Gateまたはセッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにアカウントIDを注入する。
// ロギングミドルウェアの配下であれば、アクセスログにもIDを記録させる。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// AccountFromContext はセッションミドルウェアが注入したアカウントを取得する。
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	return account, ok && account != nil
}

// ContextWithAccount はコンテキストにアカウントを注入する。
func ContextWithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
