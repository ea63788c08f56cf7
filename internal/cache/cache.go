// Package cache provides a Redis-backed cache for hot price lookups so
// repeated reads within the TTL never hit a provider.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultPriceTTL is how long a cached price stays fresh.
const DefaultPriceTTL = 60 * time.Second

// PriceCache stores the latest known price per token address.
type PriceCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewPriceCache creates a cache with the given TTL (DefaultPriceTTL if zero).
func NewPriceCache(rdb redis.UniversalClient, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{rdb: rdb, ttl: ttl}
}

func priceKey(address string) string {
	return "price:" + strings.ToLower(address)
}

// SetPrice caches a price. Values travel as decimal strings.
func (c *PriceCache) SetPrice(ctx context.Context, address string, price decimal.Decimal) error {
	if err := c.rdb.Set(ctx, priceKey(address), price.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set price: %w", err)
	}
	return nil
}

// GetPrice returns the cached price and whether it was present.
func (c *PriceCache) GetPrice(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, priceKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("cache get price: %w", err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("cache parse price %q: %w", val, err)
	}
	return price, true, nil
}
