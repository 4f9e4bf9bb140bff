package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// Reader is the read side of the ledger the handler needs.
type Reader interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]Booking, error)
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*Booking, error)
}

// Handler serves the signed-in user's booking history.
type Handler struct {
	repo   Reader
	logger *logging.Logger
}

func NewHandler(repo Reader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{bookingID}", h.Get)
	return r
}

// List handles GET /bookings?limit=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.repo.ListForUser(r.Context(), session.UserID, limit)
	if err != nil {
		h.logger.Error("failed to list bookings", "user_id", session.UserID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

// Get handles GET /bookings/{bookingID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, `{"error": "invalid booking id"}`, http.StatusBadRequest)
		return
	}

	b, err := h.repo.GetForUser(r.Context(), session.UserID, id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error": "booking not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load booking", "booking_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
