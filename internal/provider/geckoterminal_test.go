package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tokenpulse/internal/normalize"
)

const gtTokenBody = `{
  "data": {
    "attributes": {
      "address": "0xabc0000000000000000000000000000000000001",
      "symbol": "AAA",
      "name": "Token A",
      "price_usd": "1.2345",
      "volume_usd": {"h24": "123456.78"},
      "total_reserve_in_usd": "50000",
      "market_cap_usd": "2000000",
      "price_change_percentage": {"h24": "-3.2"}
    }
  }
}`

func TestGeckoTerminalTokenInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/networks/ethereum/tokens/0xabc0000000000000000000000000000000000001"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		w.Write([]byte(gtTokenBody))
	}))
	defer srv.Close()

	gt := NewGeckoTerminal(srv.URL, "ethereum", srv.Client())
	payload, err := gt.TokenInfo(context.Background(), "0xabc0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("TokenInfo: %v", err)
	}
	if payload[normalize.KeyPrice] != "1.2345" {
		t.Errorf("price = %v, want 1.2345", payload[normalize.KeyPrice])
	}
	if payload[normalize.KeyVolume24h] != "123456.78" {
		t.Errorf("volume = %v, want 123456.78", payload[normalize.KeyVolume24h])
	}
	if payload[normalize.KeyPriceChange24h] != "-3.2" {
		t.Errorf("price change = %v, want -3.2", payload[normalize.KeyPriceChange24h])
	}
}

func TestGeckoTerminalTokenInfoMissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": {"attributes": {"symbol": "AAA"}}}`))
	}))
	defer srv.Close()

	gt := NewGeckoTerminal(srv.URL, "", srv.Client())
	if _, err := gt.TokenInfo(context.Background(), "0xdead"); err == nil {
		t.Error("TokenInfo without price_usd should fail")
	}
}

func TestGeckoTerminalTokenPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(gtTokenBody))
	}))
	defer srv.Close()

	gt := NewGeckoTerminal(srv.URL, "ethereum", srv.Client())
	price, err := gt.TokenPrice(context.Background(), "0xabc0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("TokenPrice: %v", err)
	}
	if price.String() != "1.2345" {
		t.Errorf("price = %s, want 1.2345", price)
	}
}

func TestGeckoTerminalTrendingTokens(t *testing.T) {
	body := `{
	  "data": [
	    {
	      "attributes": {"name": "AAA / WETH", "base_token_price_usd": "1.5", "volume_usd": {"h24": "9000"}, "reserve_in_usd": "100000"},
	      "relationships": {"base_token": {"data": {"id": "ethereum_0xabc0000000000000000000000000000000000001"}}}
	    },
	    {
	      "attributes": {"name": "BBB / WETH", "base_token_price_usd": "0.4", "volume_usd": {"h24": "800"}, "reserve_in_usd": "20000"},
	      "relationships": {"base_token": {"data": {"id": "ethereum_0xdef0000000000000000000000000000000000002"}}}
	    },
	    {
	      "attributes": {"name": "bad id"},
	      "relationships": {"base_token": {"data": {"id": "solana_whatever"}}}
	    }
	  ]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/networks/ethereum/trending_pools") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	gt := NewGeckoTerminal(srv.URL, "ethereum", srv.Client())
	got, err := gt.TrendingTokens(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("TrendingTokens: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d payloads, want 2 (mismatched network id skipped)", len(got))
	}
	if got[0][normalize.KeyAddress] != "0xabc0000000000000000000000000000000000001" {
		t.Errorf("first address = %v", got[0][normalize.KeyAddress])
	}
}

func TestGeckoTerminalDefaults(t *testing.T) {
	gt := NewGeckoTerminal("", "", nil)
	if gt.baseURL != GeckoTerminalBaseURL {
		t.Errorf("baseURL = %s", gt.baseURL)
	}
	if gt.network != "ethereum" {
		t.Errorf("network = %s", gt.network)
	}
	if gt.Name() != "geckoterminal" {
		t.Errorf("name = %s", gt.Name())
	}
}
