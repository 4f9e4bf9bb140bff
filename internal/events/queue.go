package events

import (
	"context"
	"sync"
)

// Queue is the transport events are sent on.
type Queue interface {
	Send(ctx context.Context, body string) error
}

// MemoryQueue collects sent bodies in memory. Development runs without a
// queue URL publish to it.
type MemoryQueue struct {
	mu   sync.Mutex
	sent []string
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, body)
	return nil
}

// Sent returns a copy of every body sent so far.
func (q *MemoryQueue) Sent() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.sent...)
}
