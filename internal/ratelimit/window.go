package ratelimit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tokenpulse/internal/logging"
)

// DefaultWindow is the rolling period used when none is configured.
const DefaultWindow = 60 * time.Second

// Window applies a ceiling to a Counter. One Window instance is shared by all
// provider adapters (each using its own scope) and may also gate inbound API
// traffic.
type Window struct {
	counter Counter
	ceiling int64
	window  time.Duration
	log     logrus.FieldLogger
}

// NewWindow creates a Window with the given request ceiling per rolling
// window. Panics on a non-positive ceiling: that is a misconfiguration, not a
// runtime condition.
func NewWindow(counter Counter, ceiling int64, window time.Duration, log logrus.FieldLogger) *Window {
	if ceiling <= 0 {
		panic("ratelimit: ceiling must be positive")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Window{
		counter: counter,
		ceiling: ceiling,
		window:  window,
		log:     log.WithField("component", "ratelimit"),
	}
}

// Ceiling returns the configured request ceiling.
func (w *Window) Ceiling() int64 { return w.ceiling }

// WindowLength returns the rolling period.
func (w *Window) WindowLength() time.Duration { return w.window }

// Allow reports whether another request fits in the active window and, if so,
// counts it. A saturated window is left untouched so the caller can fall back
// without shortening the budget. Counter backend failures fail open: limiting
// is best-effort and a broken backend should not halt collection.
func (w *Window) Allow(ctx context.Context, scope, key string) bool {
	count, err := w.counter.Get(ctx, scope, key)
	if err != nil {
		w.log.WithError(err).WithField("scope", scope).Warn("rate counter read failed, allowing")
		return true
	}
	if count >= w.ceiling {
		return false
	}
	if _, err := w.counter.Incr(ctx, scope, key, w.window); err != nil {
		w.log.WithError(err).WithField("scope", scope).Warn("rate counter increment failed")
	}
	return true
}

// IncrementAndCheck is the API-facing contract: it admits and counts the
// request if the (scope, key) budget allows, or denies it with a retry-after
// hint equal to the window length. Ceiling and window are per-call so HTTP
// callers can apply different budgets per route.
func (w *Window) IncrementAndCheck(ctx context.Context, scope, key string, ceiling int64, window time.Duration) (allowed bool, retryAfter time.Duration) {
	if window <= 0 {
		window = w.window
	}
	count, err := w.counter.Get(ctx, scope, key)
	if err != nil {
		w.log.WithError(err).WithField("scope", scope).Warn("rate counter read failed, allowing")
		return true, 0
	}
	if count >= ceiling {
		return false, window
	}
	if _, err := w.counter.Incr(ctx, scope, key, window); err != nil {
		w.log.WithError(err).WithField("scope", scope).Warn("rate counter increment failed")
	}
	return true, 0
}
