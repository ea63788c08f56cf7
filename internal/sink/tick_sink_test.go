package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokenpulse/internal/bus"
	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
	"tokenpulse/internal/storage/memory"
)

func priceEvent(address string, timestampMs int64, price string) bus.Event {
	rec := &domain.PriceRecord{
		Address:    address,
		Price:      decimal.RequireFromString(price),
		Source:     "dexscreener",
		ObservedAt: time.UnixMilli(timestampMs),
	}
	return bus.NewEvent(domain.EventPriceUpdate, rec.Source, rec.EventPayload())
}

func TestTickSink_StoresPriceUpdates(t *testing.T) {
	store := memory.NewPriceStore()
	s := NewTickSink(store, nil)
	ctx := context.Background()

	if err := s.Handle(ctx, priceEvent("0xaa", 1000, "1.25")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	tick, err := store.LatestPrice(ctx, "0xaa")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if tick.Price.String() != "1.25" {
		t.Errorf("price = %s, want 1.25", tick.Price)
	}
	if tick.Source != "dexscreener" {
		t.Errorf("source = %s, want dexscreener", tick.Source)
	}
}

func TestTickSink_DuplicateIsNotAnError(t *testing.T) {
	store := memory.NewPriceStore()
	s := NewTickSink(store, nil)
	ctx := context.Background()

	evt := priceEvent("0xaa", 1000, "1.25")
	if err := s.Handle(ctx, evt); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if err := s.Handle(ctx, evt); err != nil {
		t.Errorf("redelivery should be harmless, got %v", err)
	}
}

func TestTickSink_RejectsMalformedPayload(t *testing.T) {
	s := NewTickSink(memory.NewPriceStore(), nil)

	evt := bus.NewEvent(domain.EventPriceUpdate, "test", map[string]any{"price": "1.0"})
	if err := s.Handle(context.Background(), evt); err == nil {
		t.Error("payload without address should fail")
	}
}

func TestTickSink_AttachReceivesFromBus(t *testing.T) {
	store := memory.NewPriceStore()
	s := NewTickSink(store, nil)

	b := bus.New(bus.Options{})
	sub := s.Attach(b)
	if sub.EventType() != domain.EventPriceUpdate {
		t.Fatalf("subscribed to %s", sub.EventType())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	defer b.Stop()

	b.Publish(priceEvent("0xbb", 2000, "3.5"))

	deadline := time.After(2 * time.Second)
	for {
		if _, err := store.LatestPrice(context.Background(), "0xbb"); err == nil {
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("LatestPrice failed: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("tick never reached the store")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
