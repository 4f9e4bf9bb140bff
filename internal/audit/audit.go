// Package audit records the wizard session trail in wizard_audit_events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// EventType names an audited wizard event.
type EventType string

const (
	EventSessionStarted   EventType = "wizard.session_started"
	EventSelectionChanged EventType = "wizard.selection_changed"
	EventBookingConfirmed EventType = "wizard.booking_confirmed"
	EventSessionAbandoned EventType = "wizard.session_abandoned"
)

// Event is an immutable audit record.
type Event struct {
	ID              string          `json:"id"`
	EventType       EventType       `json:"event_type"`
	UserID          string          `json:"user_id"`
	WizardSessionID string          `json:"wizard_session_id"`
	Step            string          `json:"step,omitempty"`
	SelectionID     string          `json:"selection_id,omitempty"`
	ClearedSteps    []string        `json:"cleared_steps,omitempty"`
	Details         json.RawMessage `json:"details,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Writer inserts audit events. A nil *Writer discards everything.
type Writer struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewWriter(db *sql.DB, logger *logging.Logger) *Writer {
	if db == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{db: db, logger: logger}
}

// LogEvent inserts one event.
func (w *Writer) LogEvent(ctx context.Context, event Event) error {
	if w == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ClearedSteps == nil {
		event.ClearedSteps = []string{}
	}

	query := `
		INSERT INTO wizard_audit_events (
			id, event_type, user_id, wizard_session_id, step,
			selection_id, cleared_steps, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := w.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.UserID,
		event.WizardSessionID,
		nullString(event.Step),
		nullString(event.SelectionID),
		pq.Array(event.ClearedSteps),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// Record logs the event and only reports failures through the logger.
func (w *Writer) Record(ctx context.Context, event Event) {
	if w == nil {
		return
	}
	if err := w.LogEvent(ctx, event); err != nil {
		w.logger.Warn("audit event dropped", "event_type", event.EventType, "wizard_session_id", event.WizardSessionID, "error", err)
	}
}

// ListForSession returns a wizard session's events oldest first.
func (w *Writer) ListForSession(ctx context.Context, sessionID string) ([]Event, error) {
	if w == nil {
		return nil, nil
	}
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, event_type, user_id, wizard_session_id, step, selection_id, cleared_steps, details, created_at
		FROM wizard_audit_events
		WHERE wizard_session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e           Event
			step        sql.NullString
			selectionID sql.NullString
			details     []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.UserID, &e.WizardSessionID, &step, &selectionID,
			pq.Array(&e.ClearedSteps), &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.Step = step.String
		e.SelectionID = selectionID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
