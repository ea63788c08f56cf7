package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var observedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDecimalStripsCurrencyDecoration(t *testing.T) {
	d, ok := Decimal("$1,234.56")
	if !ok {
		t.Fatal("expected value, got absent")
	}
	if !d.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("expected 1234.56, got %s", d)
	}
}

func TestDecimalAbsentCases(t *testing.T) {
	for _, v := range []any{nil, "", "N/A", "$", []string{"x"}} {
		if _, ok := Decimal(v); ok {
			t.Errorf("expected absent for %#v", v)
		}
	}
}

func TestDecimalKeepsScientificNotationFloats(t *testing.T) {
	d, ok := Decimal(1.5e-07)
	if !ok {
		t.Fatal("expected value, got absent")
	}
	if !d.Equal(decimal.RequireFromString("0.00000015")) {
		t.Fatalf("expected 0.00000015, got %s", d)
	}
}

func TestPercent(t *testing.T) {
	p, ok := Percent("-3.2%")
	if !ok || p != -3.2 {
		t.Fatalf("expected -3.2, got %v (ok=%v)", p, ok)
	}
	if _, ok := Percent("n/a"); ok {
		t.Fatal("expected absent for non-numeric percent")
	}
}

func TestAddress(t *testing.T) {
	addr, ok := Address(" 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 ")
	if !ok {
		t.Fatal("expected valid address")
	}
	if addr != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
		t.Fatalf("expected lowercased address, got %s", addr)
	}

	for _, v := range []any{"c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "0x1234", "0xZZ02aaa39b223fe8d0a0e5c4f27ead9083c756cc", 42} {
		if _, ok := Address(v); ok {
			t.Errorf("expected absent for %#v", v)
		}
	}
}

func TestRecordHappyPath(t *testing.T) {
	raw := map[string]any{
		KeyAddress:        "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		KeySymbol:         "WETH",
		KeyName:           "Wrapped Ether",
		KeyPrice:          "$1,234.56",
		KeyVolume24h:      987654.25,
		KeyLiquidity:      "50000000",
		KeyPriceChange24h: "-3.2",
	}

	rec, err := Record(raw, "dexscreener", observedAt)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !rec.Price.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("expected price 1234.56, got %s", rec.Price)
	}
	if rec.Volume24h == nil || !rec.Volume24h.Equal(decimal.RequireFromString("987654.25")) {
		t.Fatalf("unexpected volume: %v", rec.Volume24h)
	}
	if rec.PriceChange24h == nil || *rec.PriceChange24h != -3.2 {
		t.Fatalf("unexpected price change: %v", rec.PriceChange24h)
	}
	if rec.Address != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
		t.Fatalf("unexpected address: %s", rec.Address)
	}
	if rec.Source != "dexscreener" || !rec.ObservedAt.Equal(observedAt) {
		t.Fatalf("unexpected attribution: %s %s", rec.Source, rec.ObservedAt)
	}
}

func TestRecordRejectsZeroPrice(t *testing.T) {
	_, err := Record(map[string]any{KeyPrice: "0"}, "test", observedAt)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRecordRejectsMissingPrice(t *testing.T) {
	_, err := Record(map[string]any{KeyVolume24h: "100"}, "test", observedAt)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRecordRejectsNegativeVolume(t *testing.T) {
	raw := map[string]any{KeyPrice: "1.5", KeyVolume24h: "-10"}
	if _, err := Record(raw, "test", observedAt); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRecordRejectsInvertedOHLC(t *testing.T) {
	raw := map[string]any{
		KeyPrice: "1.5",
		KeyOpen:  "1.4",
		KeyHigh:  "1.0", // high below low
		KeyLow:   "1.3",
		KeyClose: "1.35",
	}
	if _, err := Record(raw, "test", observedAt); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRecordAcceptsValidOHLC(t *testing.T) {
	raw := map[string]any{
		KeyPrice: "1.5",
		KeyOpen:  "1.2",
		KeyHigh:  "1.6",
		KeyLow:   "1.1",
		KeyClose: "1.5",
	}
	rec, err := Record(raw, "test", observedAt)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !rec.HasOHLC() {
		t.Fatal("expected full OHLC set")
	}
}

func TestRecordPartialOHLCIsNotValidated(t *testing.T) {
	// Only high and low present: the ordering invariant applies to a fully
	// present OHLC set, partial fields are carried as-is.
	raw := map[string]any{
		KeyPrice: "1.5",
		KeyHigh:  "1.0",
		KeyLow:   "1.3",
	}
	if _, err := Record(raw, "test", observedAt); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestRecordUnparseableOptionalFieldIsAbsent(t *testing.T) {
	raw := map[string]any{KeyPrice: "2.0", KeyLiquidity: "unknown"}
	rec, err := Record(raw, "test", observedAt)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if rec.Liquidity != nil {
		t.Fatalf("expected absent liquidity, got %v", rec.Liquidity)
	}
}
