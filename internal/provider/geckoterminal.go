package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"tokenpulse/internal/domain"
	"tokenpulse/internal/normalize"
)

// GeckoTerminalBaseURL is the public GeckoTerminal API root.
const GeckoTerminalBaseURL = "https://api.geckoterminal.com/api/v2"

// GeckoTerminal is the fallback data source. It covers the same networks with
// a different payload shape (string-typed numerics throughout).
type GeckoTerminal struct {
	baseURL string
	network string
	client  *http.Client
}

// NewGeckoTerminal creates the adapter for one network (defaults to ethereum).
func NewGeckoTerminal(baseURL, network string, client *http.Client) *GeckoTerminal {
	if baseURL == "" {
		baseURL = GeckoTerminalBaseURL
	}
	if network == "" {
		network = domain.NetworkEthereum
	}
	return &GeckoTerminal{baseURL: baseURL, network: network, client: newHTTPClient(client)}
}

var _ Provider = (*GeckoTerminal)(nil)

// Name implements Provider.
func (g *GeckoTerminal) Name() string { return "geckoterminal" }

type gtTokenAttributes struct {
	Address        string            `json:"address"`
	Symbol         string            `json:"symbol"`
	Name           string            `json:"name"`
	PriceUsd       string            `json:"price_usd"`
	VolumeUsd      map[string]string `json:"volume_usd"`
	TotalReserve   string            `json:"total_reserve_in_usd"`
	MarketCapUsd   string            `json:"market_cap_usd"`
	PriceChangePct map[string]string `json:"price_change_percentage"`
}

type gtTokenResponse struct {
	Data struct {
		Attributes gtTokenAttributes `json:"attributes"`
	} `json:"data"`
}

func (g *GeckoTerminal) tokenAttributes(ctx context.Context, address string) (*gtTokenAttributes, error) {
	var out gtTokenResponse
	u := fmt.Sprintf("%s/networks/%s/tokens/%s", g.baseURL, url.PathEscape(g.network), url.PathEscape(address))
	if err := getJSON(ctx, g.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return nil, err
	}
	return &out.Data.Attributes, nil
}

// TokenInfo fetches the token snapshot for the adapter's network.
func (g *GeckoTerminal) TokenInfo(ctx context.Context, address string) (Payload, error) {
	attrs, err := g.tokenAttributes(ctx, address)
	if err != nil {
		return nil, err
	}
	if attrs.PriceUsd == "" {
		return nil, fmt.Errorf("geckoterminal: no price for token %s", address)
	}
	return Payload{
		normalize.KeyAddress:        attrs.Address,
		normalize.KeySymbol:         attrs.Symbol,
		normalize.KeyName:           attrs.Name,
		normalize.KeyPrice:          attrs.PriceUsd,
		normalize.KeyVolume24h:      attrs.VolumeUsd["h24"],
		normalize.KeyLiquidity:      attrs.TotalReserve,
		normalize.KeyMarketCap:      attrs.MarketCapUsd,
		normalize.KeyPriceChange24h: attrs.PriceChangePct["h24"],
	}, nil
}

// TokenPrice fetches only the current price.
func (g *GeckoTerminal) TokenPrice(ctx context.Context, address string) (decimal.Decimal, error) {
	attrs, err := g.tokenAttributes(ctx, address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	price, ok := normalize.Decimal(attrs.PriceUsd)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("geckoterminal: unparseable price %q", attrs.PriceUsd)
	}
	return price, nil
}

// PriceHistory is not offered on the token endpoint used here.
func (g *GeckoTerminal) PriceHistory(_ context.Context, _, _ string, _ int) ([]domain.Candle, error) {
	return nil, nil
}

type gtPoolsResponse struct {
	Data []struct {
		Attributes struct {
			Name         string            `json:"name"`
			PriceUsd     string            `json:"base_token_price_usd"`
			VolumeUsd    map[string]string `json:"volume_usd"`
			ReserveUsd   string            `json:"reserve_in_usd"`
			MarketCapUsd string            `json:"market_cap_usd"`
		} `json:"attributes"`
		Relationships struct {
			BaseToken struct {
				Data struct {
					ID string `json:"id"` // "<network>_<address>"
				} `json:"data"`
			} `json:"base_token"`
		} `json:"relationships"`
	} `json:"data"`
}

// TrendingTokens lists the network's trending pools. The network argument
// overrides the adapter default when non-empty.
func (g *GeckoTerminal) TrendingTokens(ctx context.Context, network string, limit int) ([]Payload, error) {
	if network == "" {
		network = g.network
	}
	var out gtPoolsResponse
	u := fmt.Sprintf("%s/networks/%s/trending_pools", g.baseURL, url.PathEscape(network))
	if err := getJSON(ctx, g.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return nil, err
	}

	payloads := make([]Payload, 0, len(out.Data))
	for _, pool := range out.Data {
		id := pool.Relationships.BaseToken.Data.ID
		addr := trimNetworkPrefix(id, network)
		if addr == "" {
			continue
		}
		payloads = append(payloads, Payload{
			normalize.KeyAddress:   addr,
			normalize.KeyName:      pool.Attributes.Name,
			normalize.KeyPrice:     pool.Attributes.PriceUsd,
			normalize.KeyVolume24h: pool.Attributes.VolumeUsd["h24"],
			normalize.KeyLiquidity: pool.Attributes.ReserveUsd,
			normalize.KeyMarketCap: pool.Attributes.MarketCapUsd,
		})
		if limit > 0 && len(payloads) == limit {
			break
		}
	}
	return payloads, nil
}

// HealthCheck probes the networks listing.
func (g *GeckoTerminal) HealthCheck(ctx context.Context) error {
	var out map[string]any
	u := fmt.Sprintf("%s/networks", g.baseURL)
	return getJSON(ctx, g.client, u, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
}

// trimNetworkPrefix extracts the address from a "<network>_<address>" id.
func trimNetworkPrefix(id, network string) string {
	prefix := network + "_"
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return ""
	}
	return id[len(prefix):]
}
