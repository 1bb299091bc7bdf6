package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// PairSource provides the pairs to refresh.
type PairSource interface {
	Pairs() []string
}

// Refresher recomputes the change for one pair.
type Refresher interface {
	RefreshChange(ctx context.Context, pair string) error
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Refresh interval (0 = disabled)
	Concurrency int           // Max concurrent refreshes (default: 4)
	Timeout     time.Duration // Per-pair timeout (default: 10s)
}

// DefaultConfig returns sensible defaults. Refreshing is off by default.
func DefaultConfig() Config {
	return Config{
		Interval:    0,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically refreshes historical changes.
type Poller struct {
	cfg       Config
	pairs     PairSource
	refresher Refresher
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, pairs PairSource, refresher Refresher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:       cfg,
		pairs:     pairs,
		refresher: refresher,
		logger:    logger,
	}
}

// Enabled reports whether Start will run a loop.
func (p *Poller) Enabled() bool {
	return p.cfg.Interval > 0
}

// Start begins the refresh loop. It is a no-op when disabled.
func (p *Poller) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Debug("change refresher disabled")
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("change refresher started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.Enabled() {
			p.logger.Info("change refresher stopped")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main loop. The first refresh waits one interval since
// subscribing already fetched.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.refreshAll(p.ctx)
		}
	}
}

// refreshAll refreshes every pair with bounded concurrency. Individual
// failures are logged and do not stop the cycle.
func (p *Poller) refreshAll(ctx context.Context) {
	start := time.Now()

	pairs := p.pairs.Pairs()
	if len(pairs) == 0 {
		p.logger.Debug("no pairs to refresh")
		return
	}

	var refreshed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, pair := range pairs {
		if gctx.Err() != nil {
			break
		}
		pair := pair
		g.Go(func() error {
			if err := p.refreshPair(gctx, pair); err != nil {
				p.logger.Warn("failed to refresh change",
					"pair", pair,
					"err", err,
				)
				failed.Add(1)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}

	g.Wait()

	p.logger.Info("refresh cycle complete",
		"pairs", len(pairs),
		"refreshed", refreshed.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

func (p *Poller) refreshPair(ctx context.Context, pair string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	return p.refresher.RefreshChange(ctx, pair)
}
