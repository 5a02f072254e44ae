package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campusauth/internal/middleware"
	"github.com/hitoshi/campusauth/internal/model"
)

// AccountFinder はロールのストアからアカウントを取得する。
// auth.Resolverが実装する。
type AccountFinder interface {
	FindAccount(ctx context.Context, role model.Role, id string) (*model.Account, error)
}

// AccountHandler はロール別APIのアカウント関連ハンドラー。
type AccountHandler struct {
	finder AccountFinder
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(finder AccountFinder) *AccountHandler {
	return &AccountHandler{finder: finder}
}

// Me はAuth Gateが注入したアカウントIDを、指定ロールのストアから取得して返す。
// GET /api/{admin,faculty,student}/me
// IDがそのロールのストアに存在しない場合は404を返す。
func (h *AccountHandler) Me(role model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			middleware.WriteMessage(w, http.StatusUnauthorized, model.MsgTokenMissing)
			return
		}

		account, err := h.finder.FindAccount(r.Context(), role, userID)
		if errors.Is(err, model.ErrAccountNotFound) {
			middleware.WriteErrorResponse(w, model.NewAccountNotFoundError(role))
			return
		}
		if err != nil {
			slog.Error("failed to find account",
				slog.String("role", string(role)),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}

		writeJSON(w, http.StatusOK, account)
	}
}
