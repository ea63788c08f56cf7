// Package provider integrates external market-data sources behind a uniform
// fetch contract. Adapters own wire-level details (HTTP, payload shapes) and
// surface loosely-typed payloads for the normalizer; every returned error is
// recoverable by contract: callers skip to the next provider rather than
// escalate. Misconfiguration panics at construction time instead.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tokenpulse/internal/domain"
)

// Payload is one raw token observation keyed by the normalize.Key* names.
type Payload = map[string]any

// Provider is the capability contract implemented by each external source.
type Provider interface {
	// Name identifies the provider; it doubles as the rate-window scope.
	Name() string

	// TokenInfo fetches the current market snapshot for a token.
	TokenInfo(ctx context.Context, address string) (Payload, error)

	// TokenPrice fetches only the current price.
	TokenPrice(ctx context.Context, address string) (decimal.Decimal, error)

	// PriceHistory fetches historical OHLCV bars; sources without a history
	// endpoint return an empty slice.
	PriceHistory(ctx context.Context, address, timeframe string, limit int) ([]domain.Candle, error)

	// TrendingTokens fetches high-activity tokens for a network, sorted by
	// 24h volume descending.
	TrendingTokens(ctx context.Context, network string, limit int) ([]Payload, error)

	// HealthCheck reports whether the upstream answers at all.
	HealthCheck(ctx context.Context) error
}

// defaultTimeout bounds every provider HTTP call so an upstream hang surfaces
// as a provider failure, not a cycle-level hang.
const defaultTimeout = 30 * time.Second

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}

// getJSON issues a GET and decodes the body via decode on a 2xx response.
func getJSON(ctx context.Context, client *http.Client, url string, decode func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
