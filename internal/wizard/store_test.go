package wizard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	state := State{
		SessionID: "wiz-1",
		UserID:    "42",
		Step:      StepCategory,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Create(ctx, state))
	assert.Error(t, store.Create(ctx, state), "duplicate create must fail")

	loaded, err := store.Load(ctx, "wiz-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Version)

	loaded.CategoryID = "1"
	loaded.Step = StepService
	saved, err := store.Save(ctx, loaded, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	_, err = store.Save(ctx, loaded, 0)
	assert.ErrorIs(t, err, ErrConflict, "stale version must conflict")

	reloaded, err := store.Load(ctx, "wiz-1")
	require.NoError(t, err)
	assert.Equal(t, "1", reloaded.CategoryID)
	assert.Equal(t, StepService, reloaded.Step)

	assert.ErrorIs(t, store.Delete(ctx, "wiz-1", 0), ErrConflict)
	require.NoError(t, store.Delete(ctx, "wiz-1", 1))

	_, err = store.Load(ctx, "wiz-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Save(ctx, reloaded, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "wiz-1", 1), ErrSessionNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, State{SessionID: "wiz-1", Step: StepCategory, ExpiresAt: now.Add(time.Minute)}))
	now = now.Add(time.Minute)
	_, err := store.Load(ctx, "wiz-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreSweepsExpiredSessions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, store.Create(ctx, State{SessionID: fmt.Sprintf("wiz-%d", i), Step: StepCategory, ExpiresAt: now.Add(30 * time.Minute)}))
	}
	now = now.Add(time.Hour)
	require.NoError(t, store.Create(ctx, State{SessionID: "wiz-live", Step: StepCategory, ExpiresAt: now.Add(30 * time.Minute)}))

	store.mu.Lock()
	held := len(store.sessions)
	store.mu.Unlock()
	assert.Equal(t, 1, held)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	storeContract(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, State{SessionID: "wiz-1", Step: StepCategory, ExpiresAt: time.Now().Add(30 * time.Minute)}))
	ttl := mr.TTL("wizard:session:wiz-1")
	assert.True(t, ttl > 29*time.Minute && ttl <= 30*time.Minute, "ttl = %s", ttl)

	mr.FastForward(31 * time.Minute)
	_, err := store.Load(ctx, "wiz-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
