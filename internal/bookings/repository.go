package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var bookingsTracer = otel.Tracer("spa.internal.bookings")

const (
	StatusConfirmed = "confirmed"

	defaultListLimit = 50
	maxListLimit     = 200
)

// ErrNotFound is returned when a booking does not exist for the user.
var ErrNotFound = errors.New("bookings: not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Booking is a wizard selection the backend accepted.
type Booking struct {
	ID               uuid.UUID  `json:"id"`
	UserID           string     `json:"userId"`
	WizardSessionID  string     `json:"wizardSessionId"`
	BackendBookingID string     `json:"backendBookingId"`
	Status           string     `json:"status"`
	CategoryID       string     `json:"categoryId"`
	ServiceID        string     `json:"serviceId"`
	TherapistID      string     `json:"therapistId"`
	Timeslot         string     `json:"timeslot"`
	ScheduledFor     *time.Time `json:"scheduledFor,omitempty"`
	ConfirmedAt      time.Time  `json:"confirmedAt"`
}

// Repository records confirmed bookings in wizard_bookings.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool or conn.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

// CreateConfirmed inserts a confirmed booking row, filling ID, status and timestamps when unset.
func (r *Repository) CreateConfirmed(ctx context.Context, b *Booking) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create_confirmed")
	defer span.End()
	span.SetAttributes(
		attribute.String("spa.user_id", b.UserID),
		attribute.String("spa.backend_booking_id", b.BackendBookingID),
	)

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusConfirmed
	}
	if b.ConfirmedAt.IsZero() {
		b.ConfirmedAt = time.Now().UTC()
	}
	if b.ScheduledFor == nil {
		if t, err := time.Parse(time.RFC3339, b.Timeslot); err == nil {
			t = t.UTC()
			b.ScheduledFor = &t
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO wizard_bookings (id, user_id, wizard_session_id, backend_booking_id, status, category_id, service_id, therapist_id, timeslot, scheduled_for, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		toPGUUID(b.ID), b.UserID, b.WizardSessionID, b.BackendBookingID, b.Status,
		b.CategoryID, b.ServiceID, b.TherapistID, b.Timeslot,
		toPGNullableTime(b.ScheduledFor), toPGTime(b.ConfirmedAt),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("bookings: insert confirmed: %w", err)
	}
	return nil
}

// ListForUser returns a user's confirmed bookings, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, wizard_session_id, backend_booking_id, status, category_id, service_id, therapist_id, timeslot, scheduled_for, confirmed_at
		FROM wizard_bookings
		WHERE user_id = $1
		ORDER BY confirmed_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list for user: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list for user: %w", err)
	}
	return out, nil
}

// GetForUser loads one booking owned by the user.
func (r *Repository) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, wizard_session_id, backend_booking_id, status, category_id, service_id, therapist_id, timeslot, scheduled_for, confirmed_at
		FROM wizard_bookings
		WHERE id = $1 AND user_id = $2`, toPGUUID(id), userID)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.WizardSessionID, &b.BackendBookingID, &b.Status,
		&b.CategoryID, &b.ServiceID, &b.TherapistID, &b.Timeslot, &b.ScheduledFor, &b.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, err
		}
		return Booking{}, fmt.Errorf("bookings: scan: %w", err)
	}
	return b, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{
		Bytes: [16]byte(id),
		Valid: true,
	}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t,
		Valid: true,
	}
}

func toPGNullableTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{
		Time:  *t,
		Valid: true,
	}
}
