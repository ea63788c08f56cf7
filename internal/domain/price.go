package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is the canonical, validated result of normalizing one provider
// payload. Optional fields are nil when the provider did not report them or
// the reported value could not be coerced.
type PriceRecord struct {
	Address string
	Symbol  string
	Name    string

	Price     decimal.Decimal // required, > 0
	Volume24h *decimal.Decimal
	Liquidity *decimal.Decimal
	MarketCap *decimal.Decimal

	Open  *decimal.Decimal
	High  *decimal.Decimal
	Low   *decimal.Decimal
	Close *decimal.Decimal

	PriceChange24h *float64 // signed fraction, e.g. -3.2 for -3.2%

	Source     string // provider name that produced the payload
	ObservedAt time.Time
}

// HasOHLC reports whether all four OHLC fields are present.
func (r *PriceRecord) HasOHLC() bool {
	return r.Open != nil && r.High != nil && r.Low != nil && r.Close != nil
}

// Tick converts the record into its storage representation.
func (r *PriceRecord) Tick() *PriceTick {
	return &PriceTick{
		Address:        r.Address,
		Price:          r.Price,
		Volume24h:      r.Volume24h,
		Liquidity:      r.Liquidity,
		MarketCap:      r.MarketCap,
		PriceChange24h: r.PriceChange24h,
		Source:         r.Source,
		TimestampMs:    r.ObservedAt.UnixMilli(),
	}
}

// PriceTick is one stored price observation.
// Corresponds to the price_ticks table.
type PriceTick struct {
	Address        string
	Price          decimal.Decimal
	Volume24h      *decimal.Decimal
	Liquidity      *decimal.Decimal
	MarketCap      *decimal.Decimal
	PriceChange24h *float64
	Source         string
	TimestampMs    int64
}

// Candle is one OHLCV bar of historical price data.
type Candle struct {
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	TimestampMs int64
}
