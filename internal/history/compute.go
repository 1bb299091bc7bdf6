package history

import (
	"math"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/prices"
)

// LookbackCandles is the number of daily candles requested per pair.
const LookbackCandles = 8

// Compute derives the 7-day change from newest-first candles. It needs at least
// two candles; with fewer than LookbackCandles the oldest available is used.
func Compute(candles []api.Candle) prices.Change {
	change := prices.NoChange()
	if len(candles) == 0 {
		return change
	}

	latest := candles[0].Close
	if isFinite(latest) {
		change.RefPrice = latest
		change.RefTimestamp = candles[0].Timestamp
		change.HasRef = true
	}

	if len(candles) < 2 {
		return change
	}

	idx := LookbackCandles - 1
	if idx > len(candles)-1 {
		idx = len(candles) - 1
	}
	sevenAgo := candles[idx].Close

	if !isFinite(latest) || !isFinite(sevenAgo) || sevenAgo == 0 {
		return change
	}

	pct := (latest - sevenAgo) / sevenAgo * 100
	if !isFinite(pct) {
		return change
	}

	change.Pct = pct
	change.HasPct = true
	change.Direction = prices.Classify(pct)
	return change
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
