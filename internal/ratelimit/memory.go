package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCounter is an in-process Counter for single-instance deployments and
// tests. Safe for concurrent use.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

var _ Counter = (*MemoryCounter)(nil)

func counterKey(scope, key string) string {
	return fmt.Sprintf("%s:%s", scope, key)
}

// Get returns the active window's count, or 0 if the window expired.
func (c *MemoryCounter) Get(_ context.Context, scope, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := counterKey(scope, key)
	e, ok := c.entries[k]
	if !ok {
		return 0, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return 0, nil
	}
	return e.count, nil
}

// Incr increments and returns the new count, starting a fresh window when the
// previous one expired.
func (c *MemoryCounter) Incr(_ context.Context, scope, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := counterKey(scope, key)
	e, ok := c.entries[k]
	if !ok || !c.now().Before(e.expires) {
		c.entries[k] = &memoryEntry{count: 1, expires: c.now().Add(window)}
		return 1, nil
	}
	e.count++
	return e.count, nil
}
