package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

const insertTickQuery = `
	INSERT INTO price_ticks (
		address, price, volume_24h, liquidity, market_cap,
		price_change_24h, source, timestamp_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertTick adds one tick. Returns ErrDuplicateKey if the key exists.
func (s *PriceStore) InsertTick(ctx context.Context, tick *domain.PriceTick) error {
	if tick == nil || tick.Address == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTickQuery, tickArgs(tick)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert price tick: %w", err)
	}
	return nil
}

// InsertTicks adds multiple ticks in one transaction. Fails the entire batch
// on any duplicate.
func (s *PriceStore) InsertTicks(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, tick := range ticks {
		if tick == nil || tick.Address == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, tick := range ticks {
		batch.Queue(insertTickQuery, tickArgs(tick)...)
	}

	results := tx.SendBatch(ctx, batch)
	for range ticks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price tick batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestPrice retrieves the most recent tick for an address.
func (s *PriceStore) LatestPrice(ctx context.Context, address string) (*domain.PriceTick, error) {
	query := `
		SELECT address, price::text, volume_24h::text, liquidity::text,
			market_cap::text, price_change_24h, source, timestamp_ms
		FROM price_ticks
		WHERE address = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, strings.ToLower(address))
	tick, err := scanTick(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest price: %w", err)
	}
	return tick, nil
}

// GetByTimeRange retrieves ticks for an address within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.PriceTick, error) {
	query := `
		SELECT address, price::text, volume_24h::text, liquidity::text,
			market_cap::text, price_change_24h, source, timestamp_ms
		FROM price_ticks
		WHERE address = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(address), start, end)
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceTick
	for rows.Next() {
		tick, err := scanTick(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		result = append(result, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return result, nil
}

func tickArgs(tick *domain.PriceTick) []any {
	price := tick.Price.String()
	return []any{
		strings.ToLower(tick.Address),
		price,
		decimalParam(tick.Volume24h),
		decimalParam(tick.Liquidity),
		decimalParam(tick.MarketCap),
		tick.PriceChange24h,
		tick.Source,
		tick.TimestampMs,
	}
}

// scanTick scans a single row into a PriceTick. NUMERIC columns are selected
// as text and re-parsed as decimals.
func scanTick(row pgx.Row) (*domain.PriceTick, error) {
	var (
		tick                         domain.PriceTick
		price                        string
		volume, liquidity, marketCap *string
	)

	err := row.Scan(
		&tick.Address,
		&price,
		&volume,
		&liquidity,
		&marketCap,
		&tick.PriceChange24h,
		&tick.Source,
		&tick.TimestampMs,
	)
	if err != nil {
		return nil, err
	}

	p, err := scanDecimal(&price)
	if err != nil {
		return nil, err
	}
	tick.Price = *p

	if tick.Volume24h, err = scanDecimal(volume); err != nil {
		return nil, err
	}
	if tick.Liquidity, err = scanDecimal(liquidity); err != nil {
		return nil, err
	}
	if tick.MarketCap, err = scanDecimal(marketCap); err != nil {
		return nil, err
	}

	return &tick, nil
}
