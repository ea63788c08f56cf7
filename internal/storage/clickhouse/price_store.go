package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse. Suited for
// high-volume tick history; MergeTree does not enforce uniqueness so
// duplicates are checked explicitly before insert.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertTick adds one tick. Returns ErrDuplicateKey if the key exists.
func (s *PriceStore) InsertTick(ctx context.Context, tick *domain.PriceTick) error {
	if tick == nil || tick.Address == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertTicks(ctx, []*domain.PriceTick{tick})
}

// InsertTicks adds multiple ticks. Fails the entire batch on any duplicate.
func (s *PriceStore) InsertTicks(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		address     string
		source      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(ticks))
	for _, tick := range ticks {
		if tick == nil || tick.Address == "" {
			return storage.ErrInvalidInput
		}
		k := key{strings.ToLower(tick.Address), tick.Source, tick.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, tick := range ticks {
		exists, err := s.exists(ctx, strings.ToLower(tick.Address), tick.Source, tick.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			address, price, volume_24h, liquidity, market_cap,
			price_change_24h, source, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		err = batch.Append(
			strings.ToLower(tick.Address),
			tick.Price,
			tick.Volume24h,
			tick.Liquidity,
			tick.MarketCap,
			tick.PriceChange24h,
			tick.Source,
			uint64(tick.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// LatestPrice retrieves the most recent tick for an address.
func (s *PriceStore) LatestPrice(ctx context.Context, address string) (*domain.PriceTick, error) {
	query := `
		SELECT address, price, volume_24h, liquidity, market_cap,
			price_change_24h, source, timestamp_ms
		FROM price_ticks
		WHERE address = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("query latest price: %w", err)
	}
	defer rows.Close()

	ticks, err := scanTicks(rows)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, storage.ErrNotFound
	}
	return ticks[0], nil
}

// GetByTimeRange retrieves ticks for an address within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.PriceTick, error) {
	query := `
		SELECT address, price, volume_24h, liquidity, market_cap,
			price_change_24h, source, timestamp_ms
		FROM price_ticks
		WHERE address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, strings.ToLower(address), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// exists checks if a tick with the given key exists.
func (s *PriceStore) exists(ctx context.Context, address, source string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM price_ticks
		WHERE address = ? AND source = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, address, source, uint64(timestampMs)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTicks scans all rows into PriceTicks.
func scanTicks(rows driver.Rows) ([]*domain.PriceTick, error) {
	var result []*domain.PriceTick
	for rows.Next() {
		var (
			tick        domain.PriceTick
			timestampMs uint64
		)
		err := rows.Scan(
			&tick.Address,
			&tick.Price,
			&tick.Volume24h,
			&tick.Liquidity,
			&tick.MarketCap,
			&tick.PriceChange24h,
			&tick.Source,
			&timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		tick.TimestampMs = int64(timestampMs)
		result = append(result, &tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return result, nil
}
