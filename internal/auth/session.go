// Package auth owns the signed-in user's server-side session: sign-in against
// the backend, the session token handed to the browser, and session lookup.
package auth

import (
	"context"
	"errors"
	"time"
)

// Role is the account type reported by the backend.
type Role string

const (
	RoleClient    Role = "client"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrMissingSecret      = errors.New("auth: signing secret not configured")
)

// Session is the signed-in user's state. BackendToken never leaves the server.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	BackendToken string    `json:"backendToken"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type ctxKey string

const sessionKey ctxKey = "spa.auth_session"

// WithSession stores the session in context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the session if present.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
