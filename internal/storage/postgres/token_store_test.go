package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/storage"
)

func TestTokenStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	token := &domain.Token{
		Address:     "0xAbC0000000000000000000000000000000000001",
		Symbol:      "AAA",
		Name:        "Token A",
		Network:     domain.NetworkEthereum,
		Watchlisted: true,
		CreatedAtMs: 1700000000000,
	}
	require.NoError(t, store.Upsert(ctx, token))

	retrieved, err := store.GetByAddress(ctx, "0xABC0000000000000000000000000000000000001")
	require.NoError(t, err)

	assert.Equal(t, "0xabc0000000000000000000000000000000000001", retrieved.Address)
	assert.Equal(t, "AAA", retrieved.Symbol)
	assert.Equal(t, "Token A", retrieved.Name)
	assert.Equal(t, domain.NetworkEthereum, retrieved.Network)
	assert.True(t, retrieved.Watchlisted)
	assert.Equal(t, int64(1700000000000), retrieved.CreatedAtMs)
}

func TestTokenStore_UpsertUpdatesExisting(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.Token{
		Address: "0xaa", Symbol: "AAA", Network: domain.NetworkEthereum, CreatedAtMs: 1000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.Token{
		Address: "0xaa", Symbol: "AAA2", Network: domain.NetworkBSC, CreatedAtMs: 9999,
	}))

	retrieved, err := store.GetByAddress(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA2", retrieved.Symbol)
	assert.Equal(t, domain.NetworkBSC, retrieved.Network)
	assert.Equal(t, int64(1000), retrieved.CreatedAtMs, "created_at_ms must survive upsert")
}

func TestTokenStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	_, err := store.GetByAddress(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_ListWatchlisted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	tokens := []*domain.Token{
		{Address: "0xcc", Symbol: "CCC", Watchlisted: true},
		{Address: "0xaa", Symbol: "AAA", Watchlisted: true},
		{Address: "0xbb", Symbol: "BBB", Watchlisted: false},
	}
	for _, tok := range tokens {
		require.NoError(t, store.Upsert(ctx, tok))
	}

	result, err := store.ListWatchlisted(ctx)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "0xaa", result[0].Address)
	assert.Equal(t, "0xcc", result[1].Address)
}

func TestTokenStore_SetWatchlisted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.Token{Address: "0xaa", Watchlisted: false}))

	require.NoError(t, store.SetWatchlisted(ctx, "0xAA", true))
	retrieved, err := store.GetByAddress(ctx, "0xaa")
	require.NoError(t, err)
	assert.True(t, retrieved.Watchlisted)

	err = store.SetWatchlisted(ctx, "0xmissing", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
