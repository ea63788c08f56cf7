package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by lowercased address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]*domain.Token)}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts a token or updates its mutable fields.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := strings.ToLower(t.Address)
	tokenCopy := *t
	tokenCopy.Address = addr

	if existing, ok := s.data[addr]; ok {
		tokenCopy.CreatedAtMs = existing.CreatedAtMs
	}
	s.data[addr] = &tokenCopy
	return nil
}

// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[strings.ToLower(address)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// ListWatchlisted retrieves all watchlisted tokens, ordered by address ASC.
func (s *TokenStore) ListWatchlisted(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Watchlisted {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// SetWatchlisted flips the watchlist flag. Returns ErrNotFound if not exists.
func (s *TokenStore) SetWatchlisted(_ context.Context, address string, watchlisted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[strings.ToLower(address)]
	if !ok {
		return storage.ErrNotFound
	}
	t.Watchlisted = watchlisted
	return nil
}
