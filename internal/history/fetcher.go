package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/prices"
)

// CandleSource returns recent candles for a pair, newest-first.
type CandleSource interface {
	GetCandles(ctx context.Context, instID string, opts api.CandlesOptions) ([]api.Candle, error)
}

// Config holds fetcher configuration.
type Config struct {
	Bar     string        // Candle size (default: 1D)
	Limit   int           // Candles per request (default: 8)
	Timeout time.Duration // Per-fetch timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Bar:     api.Bar1D,
		Limit:   LookbackCandles,
		Timeout: 10 * time.Second,
	}
}

// Fetcher computes historical changes from a CandleSource.
type Fetcher struct {
	cfg    Config
	source CandleSource
	logger *slog.Logger

	group singleflight.Group
}

// NewFetcher creates a new Fetcher.
func NewFetcher(cfg Config, source CandleSource, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bar == "" {
		cfg.Bar = api.Bar1D
	}
	if cfg.Limit <= 0 {
		cfg.Limit = LookbackCandles
	}
	return &Fetcher{
		cfg:    cfg,
		source: source,
		logger: logger,
	}
}

// Fetch requests candles for pair and computes its change.
func (f *Fetcher) Fetch(ctx context.Context, pair string) (prices.Change, error) {
	v, err, shared := f.group.Do(pair, func() (any, error) {
		if f.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
			defer cancel()
		}

		start := time.Now()
		candles, err := f.source.GetCandles(ctx, pair, api.CandlesOptions{
			Bar:   f.cfg.Bar,
			Limit: f.cfg.Limit,
		})
		if err != nil {
			return nil, err
		}

		change := Compute(candles)
		f.logger.Debug("historical change computed",
			"pair", pair,
			"candles", len(candles),
			"pct", change.Pct,
			"has_pct", change.HasPct,
			"direction", change.Direction,
			"duration", time.Since(start),
		)
		return change, nil
	})
	if err != nil {
		return prices.Change{}, fmt.Errorf("fetch change %s: %w", pair, err)
	}

	if shared {
		f.logger.Debug("historical fetch coalesced", "pair", pair)
	}

	return v.(prices.Change), nil
}
