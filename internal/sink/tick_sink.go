// Package sink contains bus subscribers that fan events out to storage.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tokenpulse/internal/bus"
	"tokenpulse/internal/domain"
	"tokenpulse/internal/logging"
	"tokenpulse/internal/storage"
)

// TickSink writes price update events into a secondary tick store, typically
// the ClickHouse analytics backend. Register it on the bus with Attach.
type TickSink struct {
	store storage.PriceStore
	log   *logrus.Logger
}

// NewTickSink creates the sink. A nil logger discards output.
func NewTickSink(store storage.PriceStore, log *logrus.Logger) *TickSink {
	if store == nil {
		panic("sink: nil price store")
	}
	if log == nil {
		log = logging.Discard()
	}
	return &TickSink{store: store, log: log}
}

var _ bus.Handler = (*TickSink)(nil)

// Attach subscribes the sink to price updates on the bus.
func (s *TickSink) Attach(b *bus.Bus) *bus.Subscription {
	return b.Subscribe(domain.EventPriceUpdate, s)
}

// Handle implements bus.Handler. Duplicate ticks are ignored: the primary
// store already holds the observation and redelivery must stay harmless.
func (s *TickSink) Handle(ctx context.Context, evt bus.Event) error {
	tick, err := domain.TickFromPayload(evt.Data)
	if err != nil {
		return fmt.Errorf("decode price update: %w", err)
	}

	if err := s.store.InsertTick(ctx, tick); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.log.WithFields(logrus.Fields{
				"address":      tick.Address,
				"timestamp_ms": tick.TimestampMs,
			}).Debug("duplicate tick skipped")
			return nil
		}
		return fmt.Errorf("store tick: %w", err)
	}
	return nil
}
