package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/internal/backend"
)

// SessionAuthenticator resolves a bearer token to a live session. *auth.Manager satisfies it.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// RequireSession rejects requests without a valid session token. The session
// and its backend token are placed on the request context.
func RequireSession(authn SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			session, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error": "invalid or expired session"}`, http.StatusUnauthorized)
				return
			}
			ctx := auth.WithSession(r.Context(), session)
			ctx = backend.WithBearerToken(ctx, session.BackendToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only sessions holding one of roles. Use after RequireSession.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := auth.SessionFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[session.Role]; !ok {
				http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
