package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const minSessionTTL = time.Second

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps each session as a JSON value that expires with the session.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("wizard: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("spa.internal.wizard.store"),
	}
}

func (s *RedisStore) Create(ctx context.Context, state State) error {
	ctx, span := s.tracer.Start(ctx, "wizard.store.create")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("wizard: failed to marshal session: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, sessionKey(state.SessionID), data, ttlUntil(state.ExpiresAt)).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("wizard: failed to persist session: %w", err)
	}
	if !ok {
		return fmt.Errorf("wizard: session %s already exists", state.SessionID)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (State, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.store.load")
	defer span.End()

	state, err := s.get(ctx, s.redis, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		span.RecordError(err)
	}
	return state, err
}

func (s *RedisStore) Save(ctx context.Context, state State, expectedVersion int64) (State, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.store.save")
	defer span.End()

	key := sessionKey(state.SessionID)
	state.Version = expectedVersion + 1
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("wizard: failed to marshal session: %w", err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, state.SessionID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttlUntil(state.ExpiresAt))
			return nil
		})
		return err
	}, key)
	if err != nil {
		return State{}, s.casError(span, err)
	}
	return state, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string, expectedVersion int64) error {
	ctx, span := s.tracer.Start(ctx, "wizard.store.delete")
	defer span.End()

	key := sessionKey(sessionID)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return s.casError(span, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, c getter, sessionID string) (State, error) {
	data, err := c.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, ErrSessionNotFound
		}
		return State{}, fmt.Errorf("wizard: failed to load session: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("wizard: failed to decode session: %w", err)
	}
	return state, nil
}

func (s *RedisStore) casError(span trace.Span, err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	}
	span.RecordError(err)
	return fmt.Errorf("wizard: failed to persist session: %w", err)
}

func sessionKey(id string) string {
	return fmt.Sprintf("wizard:session:%s", id)
}

func ttlUntil(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	ttl := time.Until(expiresAt)
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}
	return ttl
}
