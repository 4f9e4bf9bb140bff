package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

type stubLister struct {
	events []Event
	err    error
}

func (s stubLister) ListForSession(ctx context.Context, sessionID string) ([]Event, error) {
	return s.events, s.err
}

func serveAudit(lister SessionLister, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/admin/wizard-sessions/{sessionID}/audit", NewHandler(lister, logging.New("error")).ListForSession)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_ListForSession(t *testing.T) {
	rec := serveAudit(stubLister{events: []Event{
		{ID: "e1", EventType: EventSessionStarted, WizardSessionID: "wiz-1"},
		{ID: "e2", EventType: EventSelectionChanged, WizardSessionID: "wiz-1", ClearedSteps: []string{"therapist"}},
	}}, "/admin/wizard-sessions/wiz-1/audit")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 2)
	assert.Equal(t, []string{"therapist"}, body.Events[1].ClearedSteps)
}

func TestHandler_ListForSessionEmptyAndError(t *testing.T) {
	rec := serveAudit(stubLister{}, "/admin/wizard-sessions/wiz-2/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())

	rec = serveAudit(stubLister{err: errors.New("db down")}, "/admin/wizard-sessions/wiz-2/audit")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
