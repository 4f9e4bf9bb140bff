package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the session lifecycle: Save on sign-in, Load per request, Clear on sign-out.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Clear(ctx context.Context, id string) error
}

// sweepInterval is the minimum gap between full scans for expired sessions.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in process memory. Expired sessions are swept on Save.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("auth: session id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.sessions[s.ID] = *s
	return nil
}

// sweep evicts expired sessions at most once per sweepInterval. Caller holds mu.
func (m *MemoryStore) sweep() {
	now := m.now()
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Expired(m.now()) {
		_ = m.Clear(context.Background(), id)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// RedisStore persists sessions as JSON with the session's remaining lifetime as TTL.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("auth: redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("auth: session id required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("auth: failed to marshal session: %w", err)
	}
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = time.Until(s.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("auth: session %s already expired", s.ID)
		}
	}
	if err := r.redis.Set(ctx, sessionRedisKey(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to persist session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, sessionRedisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("auth: failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, sessionRedisKey(id)).Err(); err != nil {
		return fmt.Errorf("auth: failed to clear session: %w", err)
	}
	return nil
}

func sessionRedisKey(id string) string {
	return fmt.Sprintf("auth:session:%s", id)
}
