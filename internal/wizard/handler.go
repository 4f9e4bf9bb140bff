package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// Handler exposes wizard sessions over HTTP. Routes expect middleware.RequireSession upstream.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router mounted at /wizard/sessions.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.View)
		r.Delete("/", h.Cancel)
		r.Post("/select", h.Select)
		r.Post("/next", h.Next)
		r.Post("/back", h.Back)
		r.Post("/reset", h.Reset)
		r.Post("/confirm", h.Confirm)
	})
	return r
}

type selectRequest struct {
	Step string `json:"step"`
	ID   string `json:"id"`
}

// Start handles POST /wizard/sessions
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Start(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

// View handles GET /wizard/sessions/{sessionID}
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Select handles POST /wizard/sessions/{sessionID}/select
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	step, err := ParseStep(req.Step)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.Select(r.Context(), userID, chi.URLParam(r, "sessionID"), step, req.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Next handles POST /wizard/sessions/{sessionID}/next
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Next)
}

// Back handles POST /wizard/sessions/{sessionID}/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Back)
}

// Reset handles POST /wizard/sessions/{sessionID}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reset)
}

// Confirm handles POST /wizard/sessions/{sessionID}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	confirmation, err := h.service.Confirm(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, confirmation)
}

// Cancel handles DELETE /wizard/sessions/{sessionID}
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, sessionID string) (*View, error)) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := fn(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok || s.UserID == "" {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return "", false
	}
	return s.UserID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrStepNotReached),
		errors.Is(err, ErrSelectionRequired),
		errors.Is(err, ErrTerminalStep),
		errors.Is(err, ErrFirstStep),
		errors.Is(err, ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidStep),
		errors.Is(err, ErrEmptySelection),
		errors.Is(err, ErrUnknownOption):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrBookingRejected):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("wizard request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	} else if status == http.StatusBadGateway || status == http.StatusUnauthorized {
		h.logger.Warn("wizard booking rejected", "path", r.URL.Path, "error", err)
		msg = "booking could not be submitted"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode wizard response", "error", err)
	}
}
