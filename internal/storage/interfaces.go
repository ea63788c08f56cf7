package storage

import (
	"context"

	"tokenpulse/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Upsert inserts a token or updates its mutable fields. The address is
	// the identity and is stored lowercased.
	Upsert(ctx context.Context, t *domain.Token) error

	// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// ListWatchlisted retrieves all watchlisted tokens, ordered by address ASC.
	ListWatchlisted(ctx context.Context) ([]*domain.Token, error)

	// SetWatchlisted flips the watchlist flag. Returns ErrNotFound if the
	// token does not exist.
	SetWatchlisted(ctx context.Context, address string, watchlisted bool) error
}

// PriceStore provides access to price_ticks storage. Ticks are append-only.
type PriceStore interface {
	// InsertTick adds one tick. Returns ErrDuplicateKey if
	// (address, source, timestamp_ms) exists.
	InsertTick(ctx context.Context, tick *domain.PriceTick) error

	// InsertTicks adds multiple ticks. Fails the entire batch on any duplicate.
	InsertTicks(ctx context.Context, ticks []*domain.PriceTick) error

	// LatestPrice retrieves the most recent tick for an address.
	// Returns ErrNotFound if no tick exists.
	LatestPrice(ctx context.Context, address string) (*domain.PriceTick, error)

	// GetByTimeRange retrieves ticks for an address within [start, end]
	// milliseconds (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.PriceTick, error)
}
