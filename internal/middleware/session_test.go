package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/campusauth/internal/model"
)

// mockSessionLoader はSessionLoaderのモック。
type mockSessionLoader struct {
	currentAccountFn func(ctx context.Context, sessionID string) (*model.Account, error)
}

func (m *mockSessionLoader) CurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	if m.currentAccountFn != nil {
		return m.currentAccountFn(ctx, sessionID)
	}
	return nil, model.ErrUnauthenticated
}

var _ SessionLoader = (*mockSessionLoader)(nil)

func TestSessionMiddleware_ValidSession_InjectsAccount(t *testing.T) {
	loader := &mockSessionLoader{
		currentAccountFn: func(ctx context.Context, sessionID string) (*model.Account, error) {
			if sessionID != "valid-session" {
				return nil, model.ErrUnauthenticated
			}
			return &model.Account{ID: "f-1", Role: model.RoleFaculty, Email: "prof@example.edu"}, nil
		},
	}

	var gotAccount *model.Account
	var gotUserID string
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount, _ = AccountFromContext(r.Context())
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotAccount == nil || gotAccount.Role != model.RoleFaculty {
		t.Errorf("account = %+v, want faculty account", gotAccount)
	}
	if gotUserID != "f-1" {
		t.Errorf("user ID = %q, want %q", gotUserID, "f-1")
	}
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		err    error
	}{
		{"no cookie", nil, nil},
		{"empty cookie", &http.Cookie{Name: SessionCookieName, Value: ""}, nil},
		{"expired session", &http.Cookie{Name: SessionCookieName, Value: "expired"}, model.ErrUnauthenticated},
		{"store error", &http.Cookie{Name: SessionCookieName, Value: "s"}, errors.New("redis down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &mockSessionLoader{
				currentAccountFn: func(ctx context.Context, sessionID string) (*model.Account, error) {
					return nil, tt.err
				},
			}
			handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Fatal("expected error when user ID is not in context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-123")

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want %q", userID, "user-123")
	}
}

func TestAccountFromContext_Missing(t *testing.T) {
	if _, ok := AccountFromContext(context.Background()); ok {
		t.Error("expected no account in empty context")
	}
}
