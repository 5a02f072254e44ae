package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/campusauth/internal/model"
	"github.com/hitoshi/campusauth/internal/token"
)

// TestMiddlewareChain_GateThenRateLimit は
// Logging → Auth Gate → RateLimit のチェーンがchi.Routerで正しく動作することを検証する。
func TestMiddlewareChain_GateThenRateLimit(t *testing.T) {
	codec, err := token.NewCodec(token.Config{Keys: []token.Key{{ID: "k1", Secret: []byte("chain-secret")}}})
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	tok, err := codec.Issue("s-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	var logBuf bytes.Buffer
	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(newJSONLogger(&logBuf), nil))
	r.Group(func(r chi.Router) {
		r.Use(NewTokenAuthMiddleware(codec, nil))
		r.Use(rl.Middleware())
		r.Get("/api/student/me", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": userID})
		})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/student/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		logBuf.Reset()
		w := send()
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["id"] != "s-1" {
			t.Errorf("id = %q, want %q", body["id"], "s-1")
		}
		entry := decodeLogEntry(t, &logBuf)
		if entry["user_id"] != "s-1" {
			t.Errorf("logged user_id = %v, want s-1", entry["user_id"])
		}
	}

	if w := send(); w.Code != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want 429", w.Code)
	}
}

// TestMiddlewareChain_GateRejectsBeforeRateLimit は未認証リクエストがリミッターのエントリを作らないことを検証する。
func TestMiddlewareChain_GateRejectsBeforeRateLimit(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := NewTokenAuthMiddleware(&mockVerifier{}, nil)(rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount() = %d, want 0", rl.LimiterCount())
	}
}

// TestMiddlewareChain_SessionAndCSRF は
// Session → CSRF のチェーンがセッションCookie認証のPOSTを保護することを検証する。
func TestMiddlewareChain_SessionAndCSRF(t *testing.T) {
	loader := &mockSessionLoader{
		currentAccountFn: func(ctx context.Context, sessionID string) (*model.Account, error) {
			if sessionID == "router-test-session" {
				return &model.Account{ID: "a-1", Role: model.RoleAdmin}, nil
			}
			return nil, model.ErrUnauthenticated
		},
	}

	csrfConfig := CSRFConfig{}
	r := chi.NewRouter()
	r.Get("/auth/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(loader))
		r.Use(NewCSRFMiddleware(csrfConfig))
		r.Post("/auth/token", func(w http.ResponseWriter, r *http.Request) {
			account, _ := AccountFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": account.ID})
		})
	})

	// CSRFトークンを取得
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))
	var tokenBody struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&tokenBody); err != nil || tokenBody.Token == "" {
		t.Fatalf("failed to obtain CSRF token: %v", err)
	}

	tests := []struct {
		name       string
		session    string
		header     string
		wantStatus int
	}{
		{"valid session and token", "router-test-session", tokenBody.Token, http.StatusOK},
		{"missing CSRF header", "router-test-session", "", http.StatusForbidden},
		{"no session", "", tokenBody.Token, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tokenBody.Token})
			if tt.session != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.session})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
