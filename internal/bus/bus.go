// Package bus provides an in-process publish/subscribe event bus.
//
// Delivery is best-effort and process-local: a single dispatch loop dequeues
// events in publish order and fans each one out to the handlers registered for
// its type. Handlers for one event run concurrently and are all awaited before
// the next event is dequeued, so a slow consumer applies back-pressure to
// dispatch but never to publishers.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tokenpulse/internal/logging"
	"tokenpulse/internal/observability"
)

// Event is an immutable fact notification distributed by the bus.
type Event struct {
	ID            string
	Type          string
	Source        string
	Data          map[string]any
	CorrelationID string
	Timestamp     time.Time
}

// NewEvent builds an event with a fresh ID and the current UTC timestamp.
func NewEvent(eventType, source string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes events asynchronously. Returned errors are logged and
// swallowed at the handler boundary; they never affect sibling handlers.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is one registration of a handler under an event type. The same
// handler subscribed twice holds two subscriptions and is invoked twice per
// matching event.
type Subscription struct {
	eventType string
	handler   Handler
}

// EventType returns the event type this subscription matches.
func (s *Subscription) EventType() string { return s.eventType }

// Options configures a Bus.
type Options struct {
	// WaitTimeout bounds the dispatch loop's wait for the next event so a
	// stop request is observed promptly. Default 1s.
	WaitTimeout time.Duration
	Logger      logrus.FieldLogger
}

// Bus is a single-writer-queue, multi-subscriber event dispatcher.
type Bus struct {
	mu    sync.Mutex
	subs  map[string][]*Subscription
	queue []Event

	wake        chan struct{}
	stopCh      chan struct{}
	stopOnce    sync.Once
	running     atomic.Bool
	waitTimeout time.Duration
	log         logrus.FieldLogger
}

// New creates a bus. The bus is single-use: Run may be called once, and a
// stopped bus stays stopped.
func New(opts Options) *Bus {
	waitTimeout := opts.WaitTimeout
	if waitTimeout == 0 {
		waitTimeout = 1 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Bus{
		subs:        make(map[string][]*Subscription),
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		waitTimeout: waitTimeout,
		log:         log.WithField("component", "bus"),
	}
}

// Subscribe registers handler under eventType and returns the subscription
// token used to remove it. No uniqueness check is performed.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	sub := &Subscription{eventType: eventType, handler: handler}
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes one registration. It is a no-op if the subscription is
// nil, already removed, or from another bus. Removal does not interrupt
// dispatch of an event already in flight: the handler set is snapshotted when
// an event is dequeued, so the removed handler may still observe that event.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.eventType]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish enqueues the event and returns immediately. It never blocks on slow
// consumers; the queue is unbounded.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	b.queue = append(b.queue, event)
	depth := len(b.queue)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	observability.RecordEventPublished(event.Type)
	observability.UpdateQueueDepth(depth)
	b.log.WithFields(logrus.Fields{"event_type": event.Type, "queue_depth": depth}).
		Debug("event published")
}

// QueueDepth returns the number of events waiting for dispatch.
func (b *Bus) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Run enters the dispatch loop and blocks until Stop is called or ctx is
// cancelled. Events enqueued after a stop request but before the loop observes
// it are dropped; the event being dispatched when the request lands always
// completes to its full handler set. Calling Run on a bus that is already
// running is a no-op.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	defer b.running.Store(false)

	b.log.Info("dispatch loop started")
	for {
		select {
		case <-b.stopCh:
			b.log.WithField("dropped", b.QueueDepth()).Info("dispatch loop stopped")
			return nil
		case <-ctx.Done():
			b.log.WithField("dropped", b.QueueDepth()).Info("dispatch loop stopped")
			return ctx.Err()
		default:
		}

		event, ok := b.dequeue()
		if !ok {
			// Bounded wait so the stop request is observed within waitTimeout
			// even when no events arrive. Timing out here is steady-state.
			select {
			case <-b.wake:
			case <-b.stopCh:
			case <-ctx.Done():
			case <-time.After(b.waitTimeout):
			}
			continue
		}

		b.dispatch(ctx, event)
	}
}

// Stop requests the dispatch loop to exit after in-flight dispatch completes.
// The remaining queue is not drained. Idempotent.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *Bus) dequeue() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Event{}, false
	}
	event := b.queue[0]
	b.queue = b.queue[1:]
	observability.UpdateQueueDepth(len(b.queue))
	return event, true
}

// dispatch invokes all currently-registered handlers for the event
// concurrently and waits for every one of them to finish.
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs[event.Type]...)
	b.mu.Unlock()

	observability.RecordEventDispatched(event.Type)
	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			b.invoke(ctx, h, event)
		}(sub.handler)
	}
	wg.Wait()
}

// invoke isolates one handler: errors and panics are logged and swallowed so
// a failing consumer cannot corrupt delivery to the others.
func (b *Bus) invoke(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordHandlerError(event.Type)
			b.log.WithFields(logrus.Fields{
				"event_type": event.Type,
				"event_id":   event.ID,
				"panic":      r,
			}).Error("handler panicked")
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		observability.RecordHandlerError(event.Type)
		b.log.WithFields(logrus.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
		}).WithError(err).Warn("handler failed")
	}
}
