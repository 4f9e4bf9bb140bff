package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// Handler serves sign-in, sign-out and the current user.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type signInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

// SignIn handles POST /auth/sign-in
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	s, token, err := h.manager.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			http.Error(w, `{"error": "invalid email or password"}`, http.StatusUnauthorized)
		case errors.Is(err, ErrMissingSecret):
			h.logger.Error("sign in unavailable", "error", err)
			http.Error(w, `{"error": "sign in unavailable"}`, http.StatusServiceUnavailable)
		default:
			h.logger.Error("sign in failed", "error", err)
			http.Error(w, `{"error": "sign in failed"}`, http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, signInResponse{
		Token:     token,
		ExpiresAt: s.ExpiresAt,
		User:      toUserResponse(s),
	})
}

// SignOut handles POST /auth/sign-out
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return
	}
	if err := h.manager.SignOut(r.Context(), s.ID); err != nil {
		h.logger.Error("sign out failed", "session_id", s.ID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toUserResponse(s))
}

func toUserResponse(s *Session) userResponse {
	return userResponse{ID: s.UserID, Name: s.Name, Email: s.Email, Role: s.Role}
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
