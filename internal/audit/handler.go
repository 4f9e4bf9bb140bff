package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// SessionLister reads the trail of one wizard session. *Writer satisfies it.
type SessionLister interface {
	ListForSession(ctx context.Context, sessionID string) ([]Event, error)
}

// Handler exposes the audit trail to admins.
type Handler struct {
	lister SessionLister
	logger *logging.Logger
}

func NewHandler(lister SessionLister, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{lister: lister, logger: logger}
}

// ListForSession handles GET /admin/wizard-sessions/{sessionID}/audit
func (h *Handler) ListForSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, `{"error": "missing session id"}`, http.StatusBadRequest)
		return
	}
	events, err := h.lister.ListForSession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list audit events", "wizard_session_id", sessionID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": events})
}
