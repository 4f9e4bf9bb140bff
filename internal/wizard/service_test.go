package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-booking-wizard/internal/audit"
	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/internal/bookings"
	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
	"github.com/wolfman30/spa-booking-wizard/internal/events"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

const testSlot = "2026-11-02T10:00:00Z"

type spaSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[catalog.Resource]bool
}

func newSpaSource() *spaSource {
	return &spaSource{calls: map[string]int{}, fail: map[catalog.Resource]bool{}}
}

func (s *spaSource) hit(r catalog.Resource, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[string(r)+":"+parent]++
	if s.fail[r] {
		return backend.ErrUpstream
	}
	return nil
}

func (s *spaSource) count(r catalog.Resource, parent string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[string(r)+":"+parent]
}

func (s *spaSource) setFail(r catalog.Resource, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[r] = fail
}

func (s *spaSource) Categories(ctx context.Context) ([]backend.Category, error) {
	if err := s.hit(catalog.ResourceCategories, ""); err != nil {
		return nil, err
	}
	return []backend.Category{{ID: "1", Name: "Facials"}, {ID: "2", Name: "Massages"}}, nil
}

func (s *spaSource) Services(ctx context.Context, categoryID string) ([]backend.Service, error) {
	if err := s.hit(catalog.ResourceServices, categoryID); err != nil {
		return nil, err
	}
	all := []backend.Service{
		{ID: "101", Name: "Hydrafacial", CategoryID: "1", Price: 180, Duration: 60},
		{ID: "102", Name: "Chemical Peel", CategoryID: "1", Price: 90, Duration: 30},
		{ID: "201", Name: "Swedish Massage", CategoryID: "2", Price: 120, Duration: 60},
	}
	var out []backend.Service
	for _, svc := range all {
		if svc.CategoryID.String() == categoryID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *spaSource) Therapists(ctx context.Context, serviceID string) ([]backend.Therapist, error) {
	if err := s.hit(catalog.ResourceTherapists, serviceID); err != nil {
		return nil, err
	}
	all := []backend.Therapist{
		{ID: "7", Name: "Ana", ServiceIDs: []backend.ID{"101", "102"}},
		{ID: "8", Name: "Bo", ServiceIDs: []backend.ID{"201"}},
		{ID: "9", Name: "Cy", ServiceIDs: []backend.ID{"101"}},
	}
	var out []backend.Therapist
	for _, th := range all {
		for _, id := range th.ServiceIDs {
			if id.String() == serviceID {
				out = append(out, th)
				break
			}
		}
	}
	return out, nil
}

func (s *spaSource) Timeslots(ctx context.Context, therapistID string) ([]string, error) {
	if err := s.hit(catalog.ResourceTimeslots, therapistID); err != nil {
		return nil, err
	}
	return []string{testSlot, "2026-11-02T11:00:00Z"}, nil
}

type stubSubmitter struct {
	mu       sync.Mutex
	requests []backend.BookingRequest
	err      error
}

func (s *stubSubmitter) CreateBooking(ctx context.Context, req backend.BookingRequest) (*backend.BookingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &backend.BookingResult{ID: "9001", Status: "pending"}, nil
}

type memoryLedger struct{ rows []*bookings.Booking }

func (l *memoryLedger) CreateConfirmed(ctx context.Context, b *bookings.Booking) error {
	l.rows = append(l.rows, b)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Record(ctx context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) ofType(t audit.EventType) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	svc       *Service
	store     *MemoryStore
	source    *spaSource
	cache     *catalog.MemoryCache
	submitter *stubSubmitter
	ledger    *memoryLedger
	queue     *events.MemoryQueue
	audit     *recordingAudit
}

func newHarness(t *testing.T, opts ...ServiceOption) *harness {
	t.Helper()
	h := &harness{
		store:     NewMemoryStore(),
		source:    newSpaSource(),
		cache:     catalog.NewMemoryCache(),
		submitter: &stubSubmitter{},
		ledger:    &memoryLedger{},
		queue:     events.NewMemoryQueue(),
		audit:     &recordingAudit{},
	}
	logger := logging.New("error")
	cached := catalog.NewCachedSource(h.source, h.cache, time.Minute, nil, logger)
	base := []ServiceOption{
		WithLogger(logger),
		WithLedger(h.ledger),
		WithPublisher(events.NewPublisher(h.queue, logger)),
		WithAudit(h.audit),
	}
	h.svc = NewService(h.store, cached, h.submitter, append(base, opts...)...)
	return h
}

func optionIDs(v *View) []string {
	out := make([]string, 0, len(v.Options))
	for _, o := range v.Options {
		out = append(out, o.ID)
	}
	return out
}

func (h *harness) walkToConfirm(t *testing.T, userID string) *View {
	t.Helper()
	ctx := context.Background()
	v, err := h.svc.Start(ctx, userID)
	require.NoError(t, err)
	for _, sel := range []struct {
		step Step
		id   string
	}{{StepCategory, "1"}, {StepService, "101"}, {StepTherapist, "7"}, {StepTimeslot, testSlot}} {
		v, err = h.svc.Select(ctx, userID, v.SessionID, sel.step, sel.id)
		require.NoError(t, err)
	}
	require.Equal(t, StepConfirm, v.Step)
	return v
}

func TestService_StartOffersCategories(t *testing.T) {
	h := newHarness(t)
	v, err := h.svc.Start(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, StepCategory, v.Step)
	assert.Equal(t, []string{"1", "2"}, optionIDs(v))
	assert.False(t, v.CanNext)
	assert.False(t, v.CanBack)
	assert.Len(t, h.audit.ofType(audit.EventSessionStarted), 1)
}

func TestService_CategoryOneFetchesOnlyItsServices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, err := h.svc.Start(ctx, "42")
	require.NoError(t, err)

	v, err = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")
	require.NoError(t, err)
	assert.Equal(t, StepService, v.Step)
	assert.Equal(t, []string{"101", "102"}, optionIDs(v))
	assert.Equal(t, 1, h.source.count(catalog.ResourceServices, "1"))
	assert.Zero(t, h.source.count(catalog.ResourceServices, "2"))
}

func TestService_ServiceFetchesItsTherapists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")
	v, _ = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")

	v, err := h.svc.Select(ctx, "42", v.SessionID, StepService, "101")
	require.NoError(t, err)
	assert.Equal(t, StepTherapist, v.Step)
	assert.Equal(t, []string{"7", "9"}, optionIDs(v))
	assert.Equal(t, 1, h.source.count(catalog.ResourceTherapists, "101"))
}

func TestService_ReselectSameCategoryIsCacheHit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")

	v, err := h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")
	require.NoError(t, err)
	v, err = h.svc.Back(ctx, "42", v.SessionID)
	require.NoError(t, err)
	v, err = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")
	require.NoError(t, err)

	assert.Equal(t, []string{"101", "102"}, optionIDs(v))
	assert.Equal(t, 1, h.source.count(catalog.ResourceServices, "1"))
	assert.Equal(t, 1, h.source.count(catalog.ResourceCategories, ""))
}

func TestService_NextGuardAtTherapist(t *testing.T) {
	h := newHarness(t, WithPolicy(PolicyManual))
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")
	v, _ = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")
	v, _ = h.svc.Next(ctx, "42", v.SessionID)
	v, _ = h.svc.Select(ctx, "42", v.SessionID, StepService, "101")
	v, err := h.svc.Next(ctx, "42", v.SessionID)
	require.NoError(t, err)
	require.Equal(t, StepTherapist, v.Step)
	assert.False(t, v.CanNext)

	_, err = h.svc.Next(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrSelectionRequired)

	v, err = h.svc.Select(ctx, "42", v.SessionID, StepTherapist, "9")
	require.NoError(t, err)
	assert.Equal(t, StepTherapist, v.Step)
	assert.True(t, v.CanNext)
}

func TestService_CategoryChangeCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v := h.walkToConfirm(t, "42")
	for i := 0; i < 3; i++ {
		var err error
		v, err = h.svc.Back(ctx, "42", v.SessionID)
		require.NoError(t, err)
	}
	require.Equal(t, StepService, v.Step)
	assert.Equal(t, "101", v.Selections.ServiceID)

	v, err := h.svc.Select(ctx, "42", v.SessionID, StepCategory, "2")
	require.NoError(t, err)
	assert.Equal(t, StepService, v.Step)
	assert.Equal(t, Selections{CategoryID: "2"}, v.Selections)
	assert.Equal(t, []string{"201"}, optionIDs(v))

	changes := h.audit.ofType(audit.EventSelectionChanged)
	last := changes[len(changes)-1]
	assert.Equal(t, []string{"service", "therapist", "timeslot"}, last.ClearedSteps)
}

func TestService_RejectsOptionsNotOffered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")
	v, _ = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")

	_, err := h.svc.Select(ctx, "42", v.SessionID, StepService, "201")
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = h.svc.Select(ctx, "42", v.SessionID, StepTherapist, "7")
	assert.ErrorIs(t, err, ErrStepNotReached)
}

func TestService_FetchFailureYieldsEmptyOptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.source.setFail(catalog.ResourceCategories, true)

	v, err := h.svc.Start(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, v.Options)
	assert.NotNil(t, v.Options)

	_, err = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")
	assert.ErrorIs(t, err, ErrUnknownOption, "nothing valid to pick while the list is empty")

	h.source.setFail(catalog.ResourceCategories, false)
	v, err = h.svc.View(ctx, "42", v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, optionIDs(v))
}

func TestService_SessionsAreOwned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")

	_, err := h.svc.View(ctx, "43", v.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.svc.Select(ctx, "43", v.SessionID, StepCategory, "1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, h.svc.Cancel(ctx, "43", v.SessionID), ErrSessionNotFound)
}

func TestService_Confirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v := h.walkToConfirm(t, "42")
	require.True(t, v.CanConfirm)
	require.NotNil(t, v.Summary)
	assert.Equal(t, "Hydrafacial", v.Summary.Service.Name)
	assert.Equal(t, "Ana", v.Summary.Therapist.Name)

	c, err := h.svc.Confirm(ctx, "42", v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "9001", c.BackendBookingID)
	assert.Equal(t, "pending", c.Status)
	assert.Equal(t, "Facials", c.Summary.Category.Name)

	require.Len(t, h.submitter.requests, 1)
	assert.Equal(t, backend.BookingRequest{CategoryID: "1", ServiceID: "101", TherapistID: "7", Timeslot: testSlot}, h.submitter.requests[0])
	require.Len(t, h.ledger.rows, 1)
	assert.Equal(t, c.BookingID, h.ledger.rows[0].ID.String())
	assert.Len(t, h.queue.Sent(), 1)
	assert.Len(t, h.audit.ofType(audit.EventBookingConfirmed), 1)

	_, err = h.svc.View(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, ok, _ := h.cache.Get(ctx, v.SessionID, "categories:")
	assert.False(t, ok, "option cache must be dropped with the session")

	_, err = h.svc.Confirm(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_ConfirmRequiresCompleteSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")
	v, _ = h.svc.Select(ctx, "42", v.SessionID, StepCategory, "1")

	_, err := h.svc.Confirm(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, h.submitter.requests)
}

func TestService_ConfirmBackendFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v := h.walkToConfirm(t, "42")
	h.submitter.err = backend.ErrUpstream

	_, err := h.svc.Confirm(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrBookingRejected)
	assert.True(t, errors.Is(err, backend.ErrUpstream))
	assert.Empty(t, h.ledger.rows)
	assert.Empty(t, h.queue.Sent())

	again, err := h.svc.View(ctx, "42", v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, again.Step)
}

// cancellingSubmitter fails the way CreateBooking does when the client goes away mid-request.
type cancellingSubmitter struct {
	cancel context.CancelFunc
}

func (s *cancellingSubmitter) CreateBooking(ctx context.Context, req backend.BookingRequest) (*backend.BookingResult, error) {
	s.cancel()
	return nil, ctx.Err()
}

func TestService_ConfirmRestoresSessionAfterClientCancel(t *testing.T) {
	store, _ := newRedisStore(t)
	logger := logging.New("error")
	cached := catalog.NewCachedSource(newSpaSource(), nil, time.Minute, nil, logger)
	submitter := &cancellingSubmitter{}
	svc := NewService(store, cached, submitter, WithLogger(logger))
	h := &harness{svc: svc}
	v := h.walkToConfirm(t, "42")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	submitter.cancel = cancel

	_, err := svc.Confirm(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrBookingRejected)
	assert.ErrorIs(t, err, context.Canceled)

	state, err := store.Load(context.Background(), v.SessionID)
	require.NoError(t, err, "session must survive a cancelled submission")
	assert.Equal(t, StepConfirm, state.Step)
	assert.Equal(t, testSlot, state.Timeslot)
}

func TestService_Cancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")

	require.NoError(t, h.svc.Cancel(ctx, "42", v.SessionID))
	_, err := h.svc.View(ctx, "42", v.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Len(t, h.audit.ofType(audit.EventSessionAbandoned), 1)
}

// racingCatalog changes the session's upstream selection while the first fetch is in flight.
type racingCatalog struct {
	Catalog
	once sync.Once
	race func()
}

func (c *racingCatalog) Options(ctx context.Context, sessionID string, r catalog.Resource, parentID string) ([]catalog.Option, error) {
	opts, err := c.Catalog.Options(ctx, sessionID, r, parentID)
	if r == catalog.ResourceServices {
		c.once.Do(c.race)
	}
	return opts, err
}

func TestService_LateResponseForStaleKeyIsDropped(t *testing.T) {
	store := NewMemoryStore()
	source := newSpaSource()
	logger := logging.New("error")
	racing := &racingCatalog{Catalog: catalog.NewCachedSource(source, nil, time.Minute, nil, logger)}
	svc := NewService(store, racing, &stubSubmitter{}, WithLogger(logger))
	ctx := context.Background()

	v, err := svc.Start(ctx, "42")
	require.NoError(t, err)
	sessionID := v.SessionID

	racing.race = func() {
		state, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		state.CategoryID = "2"
		_, err = store.Save(ctx, state, state.Version)
		require.NoError(t, err)
	}

	v, err = svc.Select(ctx, "42", sessionID, StepCategory, "1")
	require.NoError(t, err)
	assert.Equal(t, "2", v.Selections.CategoryID)
	assert.Equal(t, []string{"201"}, optionIDs(v), "services for the superseded category must not be shown")
}

func TestService_SelectSurvivesConcurrentClose(t *testing.T) {
	store := NewMemoryStore()
	logger := logging.New("error")
	racing := &racingCatalog{Catalog: catalog.NewCachedSource(newSpaSource(), nil, time.Minute, nil, logger)}
	svc := NewService(store, racing, &stubSubmitter{}, WithLogger(logger))
	ctx := context.Background()

	v, err := svc.Start(ctx, "42")
	require.NoError(t, err)
	sessionID := v.SessionID

	racing.race = func() {
		state, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, sessionID, state.Version))
	}

	v, err = svc.Select(ctx, "42", sessionID, StepCategory, "1")
	require.NoError(t, err, "a saved transition must not turn into a 404")
	assert.Equal(t, StepService, v.Step)
	assert.Equal(t, "1", v.Selections.CategoryID)
	assert.ElementsMatch(t, []string{"101", "102"}, optionIDs(v))
}

func TestService_ConcurrentWritesConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v, _ := h.svc.Start(ctx, "42")

	state, err := h.store.Load(ctx, v.SessionID)
	require.NoError(t, err)
	_, err = h.store.Save(ctx, state, state.Version)
	require.NoError(t, err)
	_, err = h.store.Save(ctx, state, state.Version)
	assert.ErrorIs(t, err, ErrConflict)
}
