// watch connects to the public ticker stream and prints price updates to the console.
// Usage: go run ./cmd/watch --config configs/pricefeed.example.yaml --pairs BTC-USDT,ETH-USDT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/config"
	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/feed"
	"github.com/rickgao/pricefeed/internal/history"
	"github.com/rickgao/pricefeed/internal/market"
	"github.com/rickgao/pricefeed/internal/prices"
)

func main() {
	configPath := flag.String("config", "configs/pricefeed.example.yaml", "path to config file")
	pairList := flag.String("pairs", "", "comma separated pairs (overrides feed.pairs)")
	verbose := flag.Bool("verbose", false, "print full PriceInfo JSON")
	interval := flag.Duration("stats", 10*time.Second, "stats interval (0 disables)")
	flag.Parse()

	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Warn("config not loaded, using defaults", "path", *configPath, "error", err)
		cfg = config.Default()
	}

	pairs := cfg.Feed.Pairs
	if *pairList != "" {
		pairs = splitPairs(*pairList)
	}
	if len(pairs) == 0 {
		logger.Error("no pairs to watch; pass --pairs or set feed.pairs")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)
	fetcher := history.NewFetcher(history.Config{
		Bar:     cfg.History.Bar,
		Limit:   cfg.History.Limit,
		Timeout: cfg.History.Timeout,
	}, apiClient, logger)

	mgr := connection.NewManager(connection.ManagerConfig{
		URL:                   cfg.Stream.WSURL,
		HandshakeTimeout:      cfg.Stream.HandshakeTimeout,
		ReadTimeout:           cfg.Stream.ReadTimeout,
		WriteTimeout:          cfg.Stream.WriteTimeout,
		BufferSize:            cfg.Stream.BufferSize,
		InitialReconnectDelay: cfg.Stream.InitialReconnectDelay,
		ReconnectBaseDelay:    cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:     cfg.Stream.ReconnectMaxDelay,
		PingInterval:          cfg.Stream.PingInterval,
	}, logger)

	f := feed.New(mgr, fetcher,
		feed.WithLogger(logger),
		feed.WithObserver(func(pair string, info prices.PriceInfo) {
			printUpdate(pair, info, *verbose)
		}),
	)
	mgr.SetTickHandler(f.HandleTick)
	mgr.SetPairSource(f.Pairs)

	for _, pair := range pairs {
		if err := f.Subscribe(pair); err != nil {
			logger.Error("invalid pair", "pair", pair, "error", err)
			os.Exit(1)
		}
	}

	f.Start(ctx)

	// Stats printer
	if *interval > 0 {
		go func() {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					stats := mgr.Stats()
					logger.Info("stats",
						"state", stats.State,
						"session", stats.Session,
						"reconnects", stats.Reconnects,
						"queued", stats.Queued,
						"pairs", len(f.Pairs()),
						"priced", len(f.Prices()),
					)
				}
			}
		}()
	}

	logger.Info("streaming started - press Ctrl+C to stop", "pairs", strings.Join(pairs, ","))

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	if err := f.Close(shutdownCtx); err != nil {
		logger.Warn("feed close", "error", err)
	}

	logger.Info("shutdown complete")
}

func splitPairs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printUpdate(pair string, info prices.PriceInfo, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Printf("[%s] %s\n", pair, data)
		return
	}

	price := "-"
	if info.HasPrice {
		price = fmt.Sprintf("%g", info.Price)
	}
	change := "n/a"
	if info.HasChange {
		change = fmt.Sprintf("%+.2f%%", info.Change7dPct)
	}

	fmt.Printf("[PRICE] %s (%s) price=%s 7d=%s %s\n",
		pair, market.BaseSymbol(pair), price, change, info.Direction)
}
