// Package stream ingests live ticker frames over WebSocket and republishes
// them as price update events. It complements the polling collector for
// sources that push instead of answering queries.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tokenpulse/internal/bus"
	"tokenpulse/internal/domain"
	"tokenpulse/internal/logging"
	"tokenpulse/internal/normalize"
	"tokenpulse/internal/observability"
)

// Config configures stream behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// ReadTimeout is the per-frame read deadline.
	ReadTimeout time.Duration
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Stream connects to a ticker endpoint and publishes every well-formed frame
// as a price update. Malformed frames are logged and skipped; connection loss
// triggers reconnect with exponential backoff.
type Stream struct {
	endpoint string
	source   string
	bus      *bus.Bus
	config   Config
	log      *logrus.Logger

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// New creates a stream for the given endpoint. The source name tags every
// published event. Panics on missing endpoint or bus.
func New(endpoint, source string, b *bus.Bus, config Config, log *logrus.Logger) *Stream {
	if endpoint == "" {
		panic("stream: empty endpoint")
	}
	if b == nil {
		panic("stream: nil bus")
	}
	if source == "" {
		source = "stream"
	}
	def := DefaultConfig()
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = def.ReconnectDelay
	}
	if config.MaxReconnectDelay <= 0 {
		config.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = def.HandshakeTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Stream{
		endpoint: endpoint,
		source:   source,
		bus:      b,
		config:   config,
		log:      log,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Run connects and consumes frames until the context is canceled or Stop is
// called. A second concurrent Run is a no-op.
func (s *Stream) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	defer s.running.Store(false)

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		default:
		}

		err := s.consume(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		observability.RecordStreamReconnect()
		s.log.WithError(err).WithField("endpoint", s.endpoint).
			Warn("stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// consume holds one connection open and publishes its frames. Returns nil
// only on clean shutdown.
func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when shutdown is requested.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		case <-done:
			return
		}
		conn.Close()
	}()

	s.log.WithField("endpoint", s.endpoint).Info("stream connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		default:
		}

		conn.SetReadDeadline(s.now().Add(s.config.ReadTimeout))

		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			return fmt.Errorf("read frame: %w", err)
		}

		observability.RecordStreamFrame()
		s.publish(frame)
	}
}

func (s *Stream) publish(frame map[string]any) {
	rec, err := normalize.Record(frame, s.source, s.now())
	if err != nil {
		s.log.WithError(err).Debug("stream frame rejected")
		return
	}
	s.bus.Publish(bus.NewEvent(domain.EventPriceUpdate, s.source, rec.EventPayload()))
}
