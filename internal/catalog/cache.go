package catalog

import (
	"context"
	"sync"
	"time"
)

// Cache stores encoded option lists grouped by wizard session.
type Cache interface {
	Get(ctx context.Context, sessionID, field string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, field string, value []byte, ttl time.Duration) error
	Drop(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// sweepInterval is the minimum gap between full scans for expired entries.
const sweepInterval = time.Minute

// MemoryCache is a per-process Cache, used when no redis is configured.
// Expired entries are swept on Set so abandoned sessions do not accumulate.
type MemoryCache struct {
	mu        sync.Mutex
	sessions  map[string]map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		sessions: make(map[string]map[string]memoryEntry),
		now:      time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, sessionID, field string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields, ok := c.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	entry, ok := fields[field]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(fields, field)
		if len(fields) == 0 {
			delete(c.sessions, sessionID)
		}
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, sessionID, field string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()

	fields, ok := c.sessions[sessionID]
	if !ok {
		fields = make(map[string]memoryEntry)
		c.sessions[sessionID] = fields
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	fields[field] = memoryEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) Drop(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

// sweep drops expired entries at most once per sweepInterval. Caller holds mu.
func (c *MemoryCache) sweep() {
	now := c.now()
	if now.Sub(c.lastSweep) < sweepInterval {
		return
	}
	c.lastSweep = now
	for sessionID, fields := range c.sessions {
		for field, entry := range fields {
			if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
				delete(fields, field)
			}
		}
		if len(fields) == 0 {
			delete(c.sessions, sessionID)
		}
	}
}
