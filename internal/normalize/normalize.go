// Package normalize coerces heterogeneous, loosely-typed provider payloads
// into canonical price records and rejects anything that cannot be made sense
// of. Merely-missing optional fields are not an error; a violated invariant
// discards the whole record.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokenpulse/internal/domain"
)

// ErrRejected marks a payload that failed validation. Callers treat it like
// any other provider failure for the token this cycle.
var ErrRejected = errors.New("record rejected")

var (
	nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)
	addressRe    = regexp.MustCompile(`^0x[a-f0-9]{40}$`)
)

// Well-known payload keys shared by all provider adapters.
const (
	KeyAddress        = "address"
	KeySymbol         = "symbol"
	KeyName           = "name"
	KeyPrice          = "price"
	KeyOpen           = "open_price"
	KeyHigh           = "high_price"
	KeyLow            = "low_price"
	KeyClose          = "close_price"
	KeyVolume24h      = "volume_24h"
	KeyLiquidity      = "liquidity"
	KeyMarketCap      = "market_cap"
	KeyPriceChange24h = "price_change_24h"
)

// Decimal coerces a raw value to a high-precision decimal by stripping every
// character that is not a digit, decimal point, or minus sign. Unparseable or
// empty inputs report absent rather than zero.
func Decimal(v any) (decimal.Decimal, bool) {
	s, ok := numericString(v)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Percent coerces a raw percentage value to a float, stripping '%' and other
// decoration the same way Decimal does.
func Percent(v any) (float64, bool) {
	s, ok := numericString(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Address lowercases and validates a chain address. Anything that is not
// 0x followed by 40 hex characters reports absent.
func Address(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	addr := strings.ToLower(strings.TrimSpace(s))
	if !addressRe.MatchString(addr) {
		return "", false
	}
	return addr, true
}

// LowerAddress canonicalizes an address for use as a map or storage key
// without validating its shape.
func LowerAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// String trims a raw string value; empty results report absent.
func String(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return "", false
	}
	return s, true
}

// numericString renders a raw value to the stripped numeric form fed to the
// parsers. Floats are formatted with full precision first so "1.5e-07" style
// inputs do not lose their exponent to the stripping regex.
func numericString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := nonNumericRe.ReplaceAllString(t, "")
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case decimal.Decimal:
		return t.String(), true
	default:
		return "", false
	}
}

// Record normalizes one raw payload into a validated PriceRecord attributed
// to source. The payload is a flat map using the Key* constants; values may
// be strings with currency decoration, JSON numbers, or already-parsed
// decimals. Returns ErrRejected when a validation invariant is violated:
// missing or non-positive price, OHLC ordering, or negative 24h volume.
func Record(raw map[string]any, source string, observedAt time.Time) (*domain.PriceRecord, error) {
	rec := &domain.PriceRecord{
		Source:     source,
		ObservedAt: observedAt.UTC(),
	}

	if addr, ok := Address(raw[KeyAddress]); ok {
		rec.Address = addr
	}
	if s, ok := String(raw[KeySymbol]); ok {
		rec.Symbol = s
	}
	if s, ok := String(raw[KeyName]); ok {
		rec.Name = s
	}

	price, havePrice := Decimal(raw[KeyPrice])
	if !havePrice || !price.IsPositive() {
		return nil, fmt.Errorf("%w: price missing or not positive", ErrRejected)
	}
	rec.Price = price

	rec.Volume24h = optionalDecimal(raw[KeyVolume24h])
	rec.Liquidity = optionalDecimal(raw[KeyLiquidity])
	rec.MarketCap = optionalDecimal(raw[KeyMarketCap])
	rec.Open = optionalDecimal(raw[KeyOpen])
	rec.High = optionalDecimal(raw[KeyHigh])
	rec.Low = optionalDecimal(raw[KeyLow])
	rec.Close = optionalDecimal(raw[KeyClose])

	if pct, ok := Percent(raw[KeyPriceChange24h]); ok {
		rec.PriceChange24h = &pct
	}

	if rec.Volume24h != nil && rec.Volume24h.IsNegative() {
		return nil, fmt.Errorf("%w: negative 24h volume", ErrRejected)
	}

	if rec.HasOHLC() {
		if err := validateOHLC(rec); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

// validateOHLC enforces high >= max(open, close) >= min(open, close) >= low.
func validateOHLC(rec *domain.PriceRecord) error {
	maxOC := decimal.Max(*rec.Open, *rec.Close)
	minOC := decimal.Min(*rec.Open, *rec.Close)
	if rec.High.LessThan(maxOC) {
		return fmt.Errorf("%w: high below open/close", ErrRejected)
	}
	if rec.Low.GreaterThan(minOC) {
		return fmt.Errorf("%w: low above open/close", ErrRejected)
	}
	if rec.High.LessThan(*rec.Low) {
		return fmt.Errorf("%w: high below low", ErrRejected)
	}
	return nil
}

func optionalDecimal(v any) *decimal.Decimal {
	d, ok := Decimal(v)
	if !ok {
		return nil
	}
	return &d
}
