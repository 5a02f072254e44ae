package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware は許可オリジン一覧（カンマ区切り）に対するCORSミドルウェアを返す。
//
// リクエストのOriginが一覧に含まれる場合のみ、そのOriginをAccess-Control-Allow-Originに反映する。
// Cookieによるセッションと共存させるため、ワイルドカード(*)は扱わない。
// 許可ヘッダーにはベアラートークン用のAuthorizationとCSRFヘッダーを含める。
// OPTIONSプリフライトは許可の有無にかかわらず204で終了し、後続には渡さない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	allowed := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+csrfHeaderName)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) map[string]struct{} {
	origins := make(map[string]struct{})
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && o != "*" {
			origins[o] = struct{}{}
		}
	}
	return origins
}
