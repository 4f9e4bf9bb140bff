package backend

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token or credentials.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrUpstream covers any other non-2xx response.
	ErrUpstream = errors.New("backend: upstream error")
)

type ctxKey string

const tokenKey ctxKey = "spa.backend_token"

// WithBearerToken stores the caller's backend token on the context.
func WithBearerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// BearerTokenFromContext returns the token set by WithBearerToken.
func BearerTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}
