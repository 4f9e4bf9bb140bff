package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

func TestWriter_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := NewWriter(db, logging.New("error"))

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "session started",
			event: Event{
				EventType:       EventSessionStarted,
				UserID:          "42",
				WizardSessionID: "wiz-1",
				Step:            "category",
			},
		},
		{
			name: "selection changed with cascade",
			event: Event{
				EventType:       EventSelectionChanged,
				UserID:          "42",
				WizardSessionID: "wiz-1",
				Step:            "category",
				SelectionID:     "2",
				ClearedSteps:    []string{"service", "therapist"},
			},
		},
		{
			name: "booking confirmed",
			event: Event{
				EventType:       EventBookingConfirmed,
				UserID:          "42",
				WizardSessionID: "wiz-1",
				Details:         json.RawMessage(`{"backend_booking_id":"9001"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO wizard_audit_events").
				WithArgs(sqlmock.AnyArg(), tt.event.EventType, "42", "wiz-1",
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			assert.NoError(t, writer.LogEvent(context.Background(), tt.event))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_RecordSwallowsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := NewWriter(db, logging.New("error"))
	mock.ExpectExec("INSERT INTO wizard_audit_events").WillReturnError(errors.New("db down"))

	writer.Record(context.Background(), Event{EventType: EventSessionAbandoned, WizardSessionID: "wiz-1"})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_NilSafe(t *testing.T) {
	writer := NewWriter(nil, nil)
	assert.Nil(t, writer)

	assert.NoError(t, writer.LogEvent(context.Background(), Event{EventType: EventSessionStarted}))
	writer.Record(context.Background(), Event{EventType: EventSessionStarted})
	events, err := writer.ListForSession(context.Background(), "wiz-1")
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestWriter_ListForSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := NewWriter(db, logging.New("error"))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "user_id", "wizard_session_id", "step",
		"selection_id", "cleared_steps", "details", "created_at",
	}).AddRow(
		"evt-1", EventSessionStarted, "42", "wiz-1", "category", nil, []byte("{}"), nil, now,
	).AddRow(
		"evt-2", EventSelectionChanged, "42", "wiz-1", "category", "2", []byte(`{"service","therapist"}`), nil, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM wizard_audit_events").
		WithArgs("wiz-1").
		WillReturnRows(rows)

	events, err := writer.ListForSession(context.Background(), "wiz-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventSessionStarted, events[0].EventType)
	assert.Empty(t, events[0].SelectionID)
	assert.Equal(t, []string{"service", "therapist"}, events[1].ClearedSteps)
	assert.Equal(t, "2", events[1].SelectionID)
}
