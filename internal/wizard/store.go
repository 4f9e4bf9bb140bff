package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists wizard sessions. Save and Delete are compare-and-set on
// State.Version and return ErrConflict when another writer got there first.
type Store interface {
	Create(ctx context.Context, state State) error
	Load(ctx context.Context, sessionID string) (State, error)
	Save(ctx context.Context, state State, expectedVersion int64) (State, error)
	Delete(ctx context.Context, sessionID string, expectedVersion int64) error
}

// sweepInterval is the minimum gap between full scans for expired sessions.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in process memory. Expired sessions are swept
// on Create and Save.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]State
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]State),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	if _, ok := s.live(state.SessionID); ok {
		return fmt.Errorf("wizard: session %s already exists", state.SessionID)
	}
	s.sessions[state.SessionID] = state
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.live(sessionID)
	if !ok {
		return State{}, ErrSessionNotFound
	}
	return state, nil
}

func (s *MemoryStore) Save(_ context.Context, state State, expectedVersion int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	current, ok := s.live(state.SessionID)
	if !ok {
		return State{}, ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return State{}, ErrConflict
	}
	state.Version = expectedVersion + 1
	s.sessions[state.SessionID] = state
	return state, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.live(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	delete(s.sessions, sessionID)
	return nil
}

// live returns the session unless it has expired; expired entries are evicted. Caller holds mu.
func (s *MemoryStore) live(sessionID string) (State, bool) {
	state, ok := s.sessions[sessionID]
	if !ok {
		return State{}, false
	}
	if !state.ExpiresAt.IsZero() && !s.now().Before(state.ExpiresAt) {
		delete(s.sessions, sessionID)
		return State{}, false
	}
	return state, true
}

// sweep evicts expired sessions at most once per sweepInterval. Caller holds mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for id, state := range s.sessions {
		if !state.ExpiresAt.IsZero() && !now.Before(state.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
