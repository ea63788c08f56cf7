// Package ratelimit bounds request volume over a rolling time window using a
// TTL-backed counter keyed by (scope, key). Limiting is best-effort
// check-then-act, not a hard quota: a small over-admission race under
// concurrency is accepted.
package ratelimit

import (
	"context"
	"time"
)

// Counter is the windowed counter contract. Entries expire lazily: a window
// lives exactly one period from its first increment, after which the count
// reads as zero again. No background sweep is required.
type Counter interface {
	// Get returns the count for the active window, or 0 if none or expired.
	Get(ctx context.Context, scope, key string) (int64, error)

	// Incr atomically increments and returns the new count. The increment
	// that creates the counter sets its expiry to window from now.
	Incr(ctx context.Context, scope, key string, window time.Duration) (int64, error)
}
