package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts a token or updates its mutable fields.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (address, symbol, name, network, watchlisted, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			network = EXCLUDED.network,
			watchlisted = EXCLUDED.watchlisted
	`

	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(t.Address),
		t.Symbol,
		t.Name,
		t.Network,
		t.Watchlisted,
		t.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `
		SELECT address, symbol, name, network, watchlisted, created_at_ms
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, strings.ToLower(address))
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// ListWatchlisted retrieves all watchlisted tokens, ordered by address ASC.
func (s *TokenStore) ListWatchlisted(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT address, symbol, name, network, watchlisted, created_at_ms
		FROM tokens
		WHERE watchlisted = TRUE
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watchlisted tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}

// SetWatchlisted flips the watchlist flag. Returns ErrNotFound if not exists.
func (s *TokenStore) SetWatchlisted(ctx context.Context, address string, watchlisted bool) error {
	query := `UPDATE tokens SET watchlisted = $2 WHERE address = $1`

	tag, err := s.pool.Exec(ctx, query, strings.ToLower(address), watchlisted)
	if err != nil {
		return fmt.Errorf("set watchlisted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token

	err := row.Scan(
		&t.Address,
		&t.Symbol,
		&t.Name,
		&t.Network,
		&t.Watchlisted,
		&t.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
