package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

const (
	DefaultSessionTTL = 12 * time.Hour
	tokenIssuer       = "spa-booking-wizard"
)

// Authenticator logs a user in against the backend. *backend.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.LoginResult, error)
}

// Claims are carried by the session token; the subject is the session id.
type Claims struct {
	Role Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager ties backend sign-in to a stored session and its signed token.
type Manager struct {
	backend Authenticator
	store   Store
	secret  []byte
	ttl     time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

func NewManager(authn Authenticator, store Store, secret string, ttl time.Duration, logger *logging.Logger) *Manager {
	if authn == nil || store == nil {
		panic("auth: authenticator and store required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		backend: authn,
		store:   store,
		secret:  []byte(secret),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// SignIn verifies credentials with the backend and returns the new session with its token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, string, error) {
	if len(m.secret) == 0 {
		return nil, "", ErrMissingSecret
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	res, err := m.backend.Login(ctx, backend.Credentials{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("auth: sign in: %w", err)
	}

	now := m.now().UTC()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       res.User.ID.String(),
		Name:         res.User.Name,
		Email:        res.User.Email,
		Role:         normalizeRole(res.User.Role),
		BackendToken: res.Token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if s.UserID == "" {
		s.UserID = email
	}
	if s.Email == "" {
		s.Email = email
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, "", err
	}

	token, err := m.sign(s)
	if err != nil {
		_ = m.store.Clear(ctx, s.ID)
		return nil, "", err
	}
	m.logger.Info("user signed in", "user_id", s.UserID, "role", s.Role)
	return s, token, nil
}

// SignOut clears the session; tokens naming it stop working.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	if err := m.store.Clear(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Info("user signed out", "session_id", sessionID)
	return nil
}

// Authenticate parses a session token and loads the session it names.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if len(m.secret) == 0 {
		return nil, ErrMissingSecret
	}
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	s, err := m.store.Load(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Clear(ctx, s.ID)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := Claims{
		Role: s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func normalizeRole(v string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(v))) {
	case RoleTherapist:
		return RoleTherapist
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleClient
	}
}
