package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// Publisher serialises events into envelopes and sends them on a Queue.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher returns nil when queue is nil, which disables publishing.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger, now: time.Now}
}

// PublishBookingConfirmed sends a booking.confirmed.v1 event.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedV1) error {
	if p == nil {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	body, err := json.Marshal(Envelope{
		Type:       TypeBookingConfirmedV1,
		OccurredAt: p.now().UTC(),
		Payload:    event,
	})
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", TypeBookingConfirmedV1, err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	p.logger.Debug("event published", "type", TypeBookingConfirmedV1, "event_id", event.EventID, "booking_id", event.BookingID)
	return nil
}
