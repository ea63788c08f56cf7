package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceTick // keyed by (address, source, timestamp_ms)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{data: make(map[string]*domain.PriceTick)}
}

var _ storage.PriceStore = (*PriceStore)(nil)

// tickKey generates a unique key for a tick.
func tickKey(address, source string, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(address), source, timestampMs)
}

// InsertTick adds one tick. Returns ErrDuplicateKey if the key exists.
func (s *PriceStore) InsertTick(_ context.Context, tick *domain.PriceTick) error {
	if tick == nil || tick.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tickKey(tick.Address, tick.Source, tick.TimestampMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	tickCopy := *tick
	tickCopy.Address = strings.ToLower(tick.Address)
	s.data[key] = &tickCopy
	return nil
}

// InsertTicks adds multiple ticks. Fails the entire batch on any duplicate.
func (s *PriceStore) InsertTicks(_ context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check existing and intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(ticks))
	for _, tick := range ticks {
		if tick == nil || tick.Address == "" {
			return storage.ErrInvalidInput
		}
		key := tickKey(tick.Address, tick.Source, tick.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, tick := range ticks {
		key := tickKey(tick.Address, tick.Source, tick.TimestampMs)
		tickCopy := *tick
		tickCopy.Address = strings.ToLower(tick.Address)
		s.data[key] = &tickCopy
	}

	return nil
}

// LatestPrice retrieves the most recent tick for an address.
func (s *PriceStore) LatestPrice(_ context.Context, address string) (*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr := strings.ToLower(address)
	var latest *domain.PriceTick
	for _, tick := range s.data {
		if tick.Address != addr {
			continue
		}
		if latest == nil || tick.TimestampMs > latest.TimestampMs {
			latest = tick
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	tickCopy := *latest
	return &tickCopy, nil
}

// GetByTimeRange retrieves ticks for an address within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(_ context.Context, address string, start, end int64) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr := strings.ToLower(address)
	var result []*domain.PriceTick
	for _, tick := range s.data {
		if tick.Address == addr && tick.TimestampMs >= start && tick.TimestampMs <= end {
			tickCopy := *tick
			result = append(result, &tickCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
