package history

import (
	"math"
	"testing"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/prices"
)

// candlesFromCloses builds newest-first daily candles.
func candlesFromCloses(closes ...float64) []api.Candle {
	out := make([]api.Candle, len(closes))
	ts := int64(1700092800000)
	for i, c := range closes {
		out[i] = api.Candle{Timestamp: ts - int64(i)*86400000, Close: c, Confirmed: true}
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		candles []api.Candle
		wantPct float64
		wantHas bool
		wantDir prices.Direction
	}{
		{
			name:    "eight candles",
			candles: candlesFromCloses(100, 98, 95, 93, 90, 88, 85, 80),
			wantPct: 25,
			wantHas: true,
			wantDir: prices.Up,
		},
		{
			name:    "falling",
			candles: candlesFromCloses(95, 98, 100, 100, 100, 100, 100, 100),
			wantPct: -5,
			wantHas: true,
			wantDir: prices.Down,
		},
		{
			name:    "fewer than eight uses oldest",
			candles: candlesFromCloses(110, 105, 100),
			wantPct: 10,
			wantHas: true,
			wantDir: prices.Up,
		},
		{
			name:    "extra candles ignored",
			candles: candlesFromCloses(100, 1, 1, 1, 1, 1, 1, 50, 1000),
			wantPct: 100,
			wantHas: true,
			wantDir: prices.Up,
		},
		{
			name:    "within deadband",
			candles: candlesFromCloses(100.00005, 100),
			wantPct: 0.00005,
			wantHas: true,
			wantDir: prices.Flat,
		},
		{
			name:    "empty",
			candles: nil,
			wantDir: prices.Flat,
		},
		{
			name:    "single candle",
			candles: candlesFromCloses(100),
			wantDir: prices.Flat,
		},
		{
			name:    "older close zero",
			candles: candlesFromCloses(100, 98, 95, 93, 90, 88, 85, 0),
			wantDir: prices.Flat,
		},
		{
			name:    "latest NaN",
			candles: candlesFromCloses(math.NaN(), 90),
			wantDir: prices.Flat,
		},
		{
			name:    "older Inf",
			candles: candlesFromCloses(100, math.Inf(1)),
			wantDir: prices.Flat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.candles)
			if got.HasPct != tt.wantHas {
				t.Fatalf("HasPct = %v, want %v", got.HasPct, tt.wantHas)
			}
			if tt.wantHas && math.Abs(got.Pct-tt.wantPct) > 1e-6 {
				t.Errorf("Pct = %v, want %v", got.Pct, tt.wantPct)
			}
			if got.Direction != tt.wantDir {
				t.Errorf("Direction = %v, want %v", got.Direction, tt.wantDir)
			}
			if math.IsNaN(got.Pct) || math.IsInf(got.Pct, 0) {
				t.Errorf("Pct is not finite: %v", got.Pct)
			}
		})
	}
}

func TestCompute_ReferencePrice(t *testing.T) {
	candles := candlesFromCloses(100, 98)
	got := Compute(candles)

	if !got.HasRef || got.RefPrice != 100 || got.RefTimestamp != candles[0].Timestamp {
		t.Errorf("ref = (%v, %d, %v), want (100, %d, true)", got.RefPrice, got.RefTimestamp, got.HasRef, candles[0].Timestamp)
	}

	got = Compute(candlesFromCloses(math.NaN(), 98))
	if got.HasRef {
		t.Error("non-finite latest close must not become a reference price")
	}
}
