package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware returns middleware that validates a bearer token. An
// empty configured token disables authentication entirely.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if strings.HasPrefix(authHeader, prefix) && authHeader[len(prefix):] == token {
				next.ServeHTTP(w, r)
				return
			}

			Unauthorized(w)
		})
	}
}
