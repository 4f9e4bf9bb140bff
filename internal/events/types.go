package events

import "time"

const TypeBookingConfirmedV1 = "booking.confirmed.v1"

// Envelope wraps every event put on the queue.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type BookingConfirmedV1 struct {
	EventID          string     `json:"event_id"`
	BookingID        string     `json:"booking_id"`
	BackendBookingID string     `json:"backend_booking_id"`
	UserID           string     `json:"user_id"`
	WizardSessionID  string     `json:"wizard_session_id"`
	CategoryID       string     `json:"category_id"`
	ServiceID        string     `json:"service_id"`
	TherapistID      string     `json:"therapist_id"`
	Timeslot         string     `json:"timeslot"`
	ScheduledFor     *time.Time `json:"scheduled_for,omitempty"`
	ConfirmedAt      time.Time  `json:"confirmed_at"`
}
