package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/shopspring/decimal"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/normalize"
)

// DexScreenerBaseURL is the public DexScreener API root. No API key required.
const DexScreenerBaseURL = "https://api.dexscreener.com/latest"

// DexScreener fetches token data from the DexScreener pair API.
type DexScreener struct {
	baseURL string
	client  *http.Client
}

// NewDexScreener creates the adapter. baseURL and client default to the
// public endpoint and a timeout-bounded client when zero-valued.
func NewDexScreener(baseURL string, client *http.Client) *DexScreener {
	if baseURL == "" {
		baseURL = DexScreenerBaseURL
	}
	return &DexScreener{baseURL: baseURL, client: newHTTPClient(client)}
}

var _ Provider = (*DexScreener)(nil)

// Name implements Provider.
func (d *DexScreener) Name() string { return "dexscreener" }

type dsToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type dsPair struct {
	BaseToken   dsToken            `json:"baseToken"`
	PriceUsd    string             `json:"priceUsd"`
	Volume      map[string]float64 `json:"volume"`
	PriceChange map[string]float64 `json:"priceChange"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

type dsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

func (d *DexScreener) tokenPairs(ctx context.Context, address string) ([]dsPair, error) {
	var out dsResponse
	u := fmt.Sprintf("%s/dex/tokens/%s", d.baseURL, url.PathEscape(address))
	if err := getJSON(ctx, d.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return nil, err
	}
	return out.Pairs, nil
}

// TokenInfo returns the first pair's snapshot as a raw payload for the
// normalizer. Numeric values keep the wire's mixed string/float typing.
func (d *DexScreener) TokenInfo(ctx context.Context, address string) (Payload, error) {
	pairs, err := d.tokenPairs(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: no pairs for token %s", address)
	}
	return pairPayload(address, pairs[0]), nil
}

// TokenPrice returns the price of the most liquid pair for the token.
func (d *DexScreener) TokenPrice(ctx context.Context, address string) (decimal.Decimal, error) {
	pairs, err := d.tokenPairs(ctx, address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(pairs) == 0 {
		return decimal.Decimal{}, fmt.Errorf("dexscreener: no pairs for token %s", address)
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	price, ok := normalize.Decimal(best.PriceUsd)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("dexscreener: unparseable price %q", best.PriceUsd)
	}
	return price, nil
}

// PriceHistory returns an empty series: DexScreener exposes no historical
// OHLCV via the public API.
func (d *DexScreener) PriceHistory(_ context.Context, _, _ string, _ int) ([]domain.Candle, error) {
	return nil, nil
}

// TrendingTokens searches pairs for the network and returns the top results
// by 24h volume. DexScreener has no dedicated trending endpoint.
func (d *DexScreener) TrendingTokens(ctx context.Context, network string, limit int) ([]Payload, error) {
	var out dsResponse
	u := fmt.Sprintf("%s/dex/search/?q=%s", d.baseURL, url.QueryEscape(network))
	if err := getJSON(ctx, d.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return nil, err
	}

	pairs := out.Pairs
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Volume["h24"] > pairs[j].Volume["h24"]
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	payloads := make([]Payload, 0, len(pairs))
	for _, p := range pairs {
		if p.BaseToken.Address == "" {
			continue
		}
		payloads = append(payloads, pairPayload(p.BaseToken.Address, p))
	}
	return payloads, nil
}

// HealthCheck probes the search endpoint.
func (d *DexScreener) HealthCheck(ctx context.Context) error {
	var out dsResponse
	u := fmt.Sprintf("%s/dex/search/?q=%s", d.baseURL, url.QueryEscape(domain.NetworkEthereum))
	return getJSON(ctx, d.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
}

func pairPayload(address string, p dsPair) Payload {
	return Payload{
		normalize.KeyAddress:        address,
		normalize.KeySymbol:         p.BaseToken.Symbol,
		normalize.KeyName:           p.BaseToken.Name,
		normalize.KeyPrice:          p.PriceUsd,
		normalize.KeyVolume24h:      p.Volume["h24"],
		normalize.KeyLiquidity:      p.Liquidity.USD,
		normalize.KeyMarketCap:      p.MarketCap,
		normalize.KeyPriceChange24h: p.PriceChange["h24"],
	}
}
