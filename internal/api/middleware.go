package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/wardenlabs/gamewarden/internal/auth"
)

type userContextKey struct{}

// AuthMiddleware validates the bearer token and stashes the user on the
// request context.
func AuthMiddleware(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			user, err := authSvc.ValidateSession(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return h[7:]
	}
	// WebSocket clients cannot set headers; they pass the token as a query
	// parameter instead.
	return r.URL.Query().Get("token")
}

func requestUser(r *http.Request) *auth.User {
	u, _ := r.Context().Value(userContextKey{}).(*auth.User)
	return u
}
