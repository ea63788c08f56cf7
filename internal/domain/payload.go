package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Event payload keys for price updates.
const (
	PayloadAddress        = "address"
	PayloadSymbol         = "symbol"
	PayloadName           = "name"
	PayloadPrice          = "price"
	PayloadVolume24h      = "volume_24h"
	PayloadLiquidity      = "liquidity"
	PayloadMarketCap      = "market_cap"
	PayloadPriceChange24h = "price_change_24h"
	PayloadSource         = "source"
	PayloadTimestampMs    = "timestamp_ms"
)

// EventPayload encodes the record for publication on the bus. Decimals travel
// as strings so subscribers never see float rounding.
func (r *PriceRecord) EventPayload() map[string]any {
	data := map[string]any{
		PayloadAddress:     r.Address,
		PayloadPrice:       r.Price.String(),
		PayloadSource:      r.Source,
		PayloadTimestampMs: r.ObservedAt.UnixMilli(),
	}
	if r.Symbol != "" {
		data[PayloadSymbol] = r.Symbol
	}
	if r.Name != "" {
		data[PayloadName] = r.Name
	}
	if r.Volume24h != nil {
		data[PayloadVolume24h] = r.Volume24h.String()
	}
	if r.Liquidity != nil {
		data[PayloadLiquidity] = r.Liquidity.String()
	}
	if r.MarketCap != nil {
		data[PayloadMarketCap] = r.MarketCap.String()
	}
	if r.PriceChange24h != nil {
		data[PayloadPriceChange24h] = *r.PriceChange24h
	}
	return data
}

// TickFromPayload decodes a price update payload back into a tick.
func TickFromPayload(data map[string]any) (*PriceTick, error) {
	address, _ := data[PayloadAddress].(string)
	if address == "" {
		return nil, fmt.Errorf("payload missing %s", PayloadAddress)
	}

	priceStr, _ := data[PayloadPrice].(string)
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("payload price %q: %w", priceStr, err)
	}

	tick := &PriceTick{
		Address: address,
		Price:   price,
	}

	if s, ok := data[PayloadSource].(string); ok {
		tick.Source = s
	}
	switch ts := data[PayloadTimestampMs].(type) {
	case int64:
		tick.TimestampMs = ts
	case float64:
		tick.TimestampMs = int64(ts)
	default:
		return nil, fmt.Errorf("payload missing %s", PayloadTimestampMs)
	}

	if tick.Volume24h, err = optionalDecimal(data, PayloadVolume24h); err != nil {
		return nil, err
	}
	if tick.Liquidity, err = optionalDecimal(data, PayloadLiquidity); err != nil {
		return nil, err
	}
	if tick.MarketCap, err = optionalDecimal(data, PayloadMarketCap); err != nil {
		return nil, err
	}
	if change, ok := data[PayloadPriceChange24h].(float64); ok {
		tick.PriceChange24h = &change
	}

	return tick, nil
}

func optionalDecimal(data map[string]any, key string) (*decimal.Decimal, error) {
	raw, ok := data[key]
	if !ok {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("payload %s: expected string, got %T", key, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("payload %s %q: %w", key, s, err)
	}
	return &d, nil
}
