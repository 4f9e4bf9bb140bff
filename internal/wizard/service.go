package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-booking-wizard/internal/audit"
	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/internal/bookings"
	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
	"github.com/wolfman30/spa-booking-wizard/internal/events"
	"github.com/wolfman30/spa-booking-wizard/internal/observability/metrics"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

const (
	DefaultSessionTTL = 30 * time.Minute

	// maxViewAttempts bounds how often a view is rebuilt after its option list went stale.
	maxViewAttempts = 3

	// restoreTimeout bounds putting a session back after a failed submission.
	restoreTimeout = 5 * time.Second
)

var wizardTracer = otel.Tracer("spa.internal.wizard")

// Catalog serves dependent option lists. *catalog.CachedSource satisfies it.
type Catalog interface {
	Options(ctx context.Context, sessionID string, resource catalog.Resource, parentID string) ([]catalog.Option, error)
	Invalidate(ctx context.Context, sessionID string) error
}

// BookingSubmitter sends confirmed selections to the backend.
type BookingSubmitter interface {
	CreateBooking(ctx context.Context, req backend.BookingRequest) (*backend.BookingResult, error)
}

type Ledger interface {
	CreateConfirmed(ctx context.Context, b *bookings.Booking) error
}

type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event events.BookingConfirmedV1) error
}

type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Confirmation is returned once the backend accepted a booking.
type Confirmation struct {
	BookingID        string     `json:"bookingId"`
	BackendBookingID string     `json:"backendBookingId"`
	Status           string     `json:"status"`
	SessionID        string     `json:"sessionId"`
	Selections       Selections `json:"selections"`
	Summary          *Summary   `json:"summary,omitempty"`
	ConfirmedAt      time.Time  `json:"confirmedAt"`
}

// Service runs wizard sessions on top of a Store and a Catalog.
type Service struct {
	store     Store
	catalog   Catalog
	submitter BookingSubmitter
	ledger    Ledger
	publisher EventPublisher
	audit     AuditRecorder
	metrics   *metrics.WizardMetrics
	logger    *logging.Logger
	policy    AdvancePolicy
	ttl       time.Duration
	now       func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithPolicy(p AdvancePolicy) ServiceOption {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLedger(l Ledger) ServiceOption { return func(s *Service) { s.ledger = l } }

func WithPublisher(p EventPublisher) ServiceOption { return func(s *Service) { s.publisher = p } }

func WithAudit(a AuditRecorder) ServiceOption { return func(s *Service) { s.audit = a } }

func WithMetrics(m *metrics.WizardMetrics) ServiceOption { return func(s *Service) { s.metrics = m } }

func WithLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store Store, cat Catalog, submitter BookingSubmitter, opts ...ServiceOption) *Service {
	if store == nil || cat == nil || submitter == nil {
		panic("wizard: store, catalog and booking submitter required")
	}
	s := &Service{
		store:     store,
		catalog:   cat,
		submitter: submitter,
		logger:    logging.Default(),
		policy:    PolicyAuto,
		ttl:       DefaultSessionTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new session for userID at the category step.
func (s *Service) Start(ctx context.Context, userID string) (*View, error) {
	ctx, span := wizardTracer.Start(ctx, "wizard.start")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("wizard: user id required")
	}
	now := s.now().UTC()
	state := State{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Step:      StepCategory,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	span.SetAttributes(attribute.String("spa.wizard_session_id", state.SessionID))
	if err := s.store.Create(ctx, state); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTransition("start", string(state.Step), nil)
	s.record(ctx, audit.Event{
		EventType:       audit.EventSessionStarted,
		UserID:          userID,
		WizardSessionID: state.SessionID,
		Step:            string(state.Step),
	})
	s.logger.Info("wizard session started", "session_id", state.SessionID, "user_id", userID)
	return s.render(ctx, state)
}

// View returns the session's current step with its options.
func (s *Service) View(ctx context.Context, userID, sessionID string) (*View, error) {
	ctx, span := wizardTracer.Start(ctx, "wizard.view")
	defer span.End()

	state, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, state)
}

// Select records id at step. The id must be one of the options currently offered there.
func (s *Service) Select(ctx context.Context, userID, sessionID string, step Step, id string) (*View, error) {
	return s.apply(ctx, userID, sessionID, Select(step, id))
}

func (s *Service) Next(ctx context.Context, userID, sessionID string) (*View, error) {
	return s.apply(ctx, userID, sessionID, Next())
}

func (s *Service) Back(ctx context.Context, userID, sessionID string) (*View, error) {
	return s.apply(ctx, userID, sessionID, Back())
}

func (s *Service) Reset(ctx context.Context, userID, sessionID string) (*View, error) {
	return s.apply(ctx, userID, sessionID, Reset())
}

func (s *Service) apply(ctx context.Context, userID, sessionID string, action Action) (*View, error) {
	ctx, span := wizardTracer.Start(ctx, "wizard."+string(action.Kind))
	defer span.End()
	span.SetAttributes(attribute.String("spa.wizard_session_id", sessionID))

	state, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(action.ID)
	if action.Kind == ActionSelect && id != "" && action.Step.Selectable() && action.Step.Index() <= state.Step.Index() {
		if !catalog.Contains(s.options(ctx, state, action.Step), id) {
			s.metrics.ObserveTransition(string(action.Kind), string(state.Step), ErrUnknownOption)
			return nil, fmt.Errorf("%w: %s %q", ErrUnknownOption, action.Step, id)
		}
	}

	next, cleared, err := Reduce(state, action, s.policy)
	if err == nil {
		err = next.Validate()
	}
	s.metrics.ObserveTransition(string(action.Kind), string(next.Step), err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := s.now().UTC()
	next.UpdatedAt = now
	next.ExpiresAt = now.Add(s.ttl)
	saved, err := s.store.Save(ctx, next, state.Version)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if action.Kind == ActionSelect && state.Selection(action.Step) != saved.Selection(action.Step) {
		s.record(ctx, audit.Event{
			EventType:       audit.EventSelectionChanged,
			UserID:          userID,
			WizardSessionID: sessionID,
			Step:            string(action.Step),
			SelectionID:     id,
			ClearedSteps:    stepNames(cleared),
		})
	}
	s.logger.Debug("wizard transition", "session_id", sessionID, "action", action.Kind, "from", state.Step, "step", saved.Step, "cleared", stepNames(cleared))
	return s.render(ctx, saved)
}

// Confirm submits the completed selection and closes the session.
func (s *Service) Confirm(ctx context.Context, userID, sessionID string) (*Confirmation, error) {
	ctx, span := wizardTracer.Start(ctx, "wizard.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("spa.wizard_session_id", sessionID))

	state, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != StepConfirm || !state.Complete() {
		return nil, ErrNotReady
	}
	summary := s.summary(ctx, state)

	// Delete claims the session; a concurrent confirm gets ErrConflict or ErrSessionNotFound.
	if err := s.store.Delete(ctx, sessionID, state.Version); err != nil {
		return nil, err
	}

	res, err := s.submitter.CreateBooking(ctx, backend.BookingRequest{
		CategoryID:  state.CategoryID,
		ServiceID:   state.ServiceID,
		TherapistID: state.TherapistID,
		Timeslot:    state.Timeslot,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveConfirmation("failed")
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		restoreErr := s.store.Create(restoreCtx, state)
		cancel()
		if restoreErr != nil {
			s.logger.Error("failed to restore wizard session after booking failure", "session_id", sessionID, "error", restoreErr)
		}
		s.logger.Warn("booking submission failed", "session_id", sessionID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrBookingRejected, err)
	}

	now := s.now().UTC()
	booking := &bookings.Booking{
		ID:               uuid.New(),
		UserID:           userID,
		WizardSessionID:  sessionID,
		BackendBookingID: res.ID.String(),
		Status:           bookings.StatusConfirmed,
		CategoryID:       state.CategoryID,
		ServiceID:        state.ServiceID,
		TherapistID:      state.TherapistID,
		Timeslot:         state.Timeslot,
		ConfirmedAt:      now,
	}
	if s.ledger != nil {
		if err := s.ledger.CreateConfirmed(ctx, booking); err != nil {
			s.logger.Error("failed to record confirmed booking", "session_id", sessionID, "backend_booking_id", booking.BackendBookingID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBookingConfirmed(ctx, events.BookingConfirmedV1{
			BookingID:        booking.ID.String(),
			BackendBookingID: booking.BackendBookingID,
			UserID:           userID,
			WizardSessionID:  sessionID,
			CategoryID:       state.CategoryID,
			ServiceID:        state.ServiceID,
			TherapistID:      state.TherapistID,
			Timeslot:         state.Timeslot,
			ScheduledFor:     booking.ScheduledFor,
			ConfirmedAt:      now,
		}); err != nil {
			s.logger.Error("failed to publish booking confirmed", "session_id", sessionID, "error", err)
		}
	}
	details, _ := json.Marshal(map[string]string{"backend_booking_id": booking.BackendBookingID, "booking_id": booking.ID.String()})
	s.record(ctx, audit.Event{
		EventType:       audit.EventBookingConfirmed,
		UserID:          userID,
		WizardSessionID: sessionID,
		Step:            string(StepConfirm),
		Details:         details,
	})
	s.invalidate(ctx, sessionID)
	s.metrics.ObserveConfirmation("confirmed")
	s.logger.Info("booking confirmed", "session_id", sessionID, "user_id", userID, "booking_id", booking.ID, "backend_booking_id", booking.BackendBookingID)

	status := res.Status
	if status == "" {
		status = bookings.StatusConfirmed
	}
	return &Confirmation{
		BookingID:        booking.ID.String(),
		BackendBookingID: booking.BackendBookingID,
		Status:           status,
		SessionID:        sessionID,
		Selections:       newView(state, nil).Selections,
		Summary:          summary,
		ConfirmedAt:      now,
	}, nil
}

// Cancel discards the session when the user navigates away.
func (s *Service) Cancel(ctx context.Context, userID, sessionID string) error {
	ctx, span := wizardTracer.Start(ctx, "wizard.cancel")
	defer span.End()

	state, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID, state.Version); err != nil {
		span.RecordError(err)
		return err
	}
	s.invalidate(ctx, sessionID)
	s.metrics.ObserveTransition("cancel", string(state.Step), nil)
	s.record(ctx, audit.Event{
		EventType:       audit.EventSessionAbandoned,
		UserID:          userID,
		WizardSessionID: sessionID,
		Step:            string(state.Step),
	})
	s.logger.Info("wizard session abandoned", "session_id", sessionID, "user_id", userID, "step", state.Step)
	return nil
}

// load fetches the session and hides sessions owned by other users.
func (s *Service) load(ctx context.Context, userID, sessionID string) (State, error) {
	if strings.TrimSpace(sessionID) == "" {
		return State{}, ErrSessionNotFound
	}
	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if state.UserID != userID {
		return State{}, ErrSessionNotFound
	}
	return state, nil
}

// render builds the view for state. If the session moved to a different
// upstream key while options were in flight, the late list is dropped and
// the view is rebuilt for the current key.
func (s *Service) render(ctx context.Context, state State) (*View, error) {
	for attempt := 1; ; attempt++ {
		if state.Step == StepConfirm {
			v := newView(state, nil)
			v.Summary = s.summary(ctx, state)
			return v, nil
		}

		opts := s.options(ctx, state, state.Step)
		if attempt >= maxViewAttempts {
			return newView(state, opts), nil
		}
		fresh, err := s.store.Load(ctx, state.SessionID)
		if errors.Is(err, ErrSessionNotFound) {
			// closed by a concurrent confirm or cancel after our write landed
			return newView(state, opts), nil
		}
		if err != nil {
			return nil, err
		}
		if fresh.Step == state.Step && fresh.ParentID(fresh.Step) == state.ParentID(state.Step) {
			return newView(fresh, opts), nil
		}
		s.logger.Debug("dropping stale option list", "session_id", state.SessionID, "step", state.Step, "current_step", fresh.Step)
		state = fresh
	}
}

// options never fails: a fetch error yields an empty list.
func (s *Service) options(ctx context.Context, state State, step Step) []catalog.Option {
	opts, err := s.catalog.Options(ctx, state.SessionID, step.resource(), state.ParentID(step))
	if err != nil {
		s.logger.Warn("option fetch failed", "session_id", state.SessionID, "step", step, "error", err)
		return nil
	}
	return opts
}

func (s *Service) summary(ctx context.Context, state State) *Summary {
	return &Summary{
		Category:  findOption(s.options(ctx, state, StepCategory), state.CategoryID),
		Service:   findOption(s.options(ctx, state, StepService), state.ServiceID),
		Therapist: findOption(s.options(ctx, state, StepTherapist), state.TherapistID),
		Timeslot:  state.Timeslot,
	}
}

func (s *Service) invalidate(ctx context.Context, sessionID string) {
	if err := s.catalog.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("failed to drop option cache", "session_id", sessionID, "error", err)
	}
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, event)
}

func stepNames(steps []Step) []string {
	if len(steps) == 0 {
		return nil
	}
	out := make([]string, len(steps))
	for i, step := range steps {
		out[i] = string(step)
	}
	return out
}
