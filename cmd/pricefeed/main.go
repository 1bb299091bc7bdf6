// pricefeed streams live crypto prices with 7-day change and serves them over HTTP.
// Usage: go run ./cmd/pricefeed --config configs/pricefeed.example.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/config"
	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/database"
	"github.com/rickgao/pricefeed/internal/feed"
	"github.com/rickgao/pricefeed/internal/history"
	"github.com/rickgao/pricefeed/internal/httpapi"
	"github.com/rickgao/pricefeed/internal/poller"
	"github.com/rickgao/pricefeed/internal/recorder"
	"github.com/rickgao/pricefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pricefeed.example.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// Missing .env is fine; variables may come from the environment
	_ = godotenv.Load(*envFile)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting pricefeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"pairs", len(cfg.Feed.Pairs),
	)
	if len(cfg.UnsetEnv) > 0 {
		logger.Warn("config references unset environment variables", "vars", cfg.UnsetEnv)
	}

	// Create context with cancellation
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

	// Optional snapshot recording
	var rec *recorder.Recorder
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		var pool *pgxpool.Pool
		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		rec = recorder.New(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, logger.With("component", "recorder"))
	}

	// REST client and historical fetcher
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)
	fetcher := history.NewFetcher(history.Config{
		Bar:     cfg.History.Bar,
		Limit:   cfg.History.Limit,
		Timeout: cfg.History.Timeout,
	}, apiClient, logger.With("component", "history"))

	// Connection Manager
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
	}, logger.With("component", "stream"))

	// Facade
	opts := []feed.Option{feed.WithLogger(logger.With("component", "feed"))}
	if rec != nil {
		opts = append(opts, feed.WithObserver(rec.Observe))
	}
	f := feed.New(mgr, fetcher, opts...)
	mgr.SetTickHandler(f.HandleTick)
	mgr.SetPairSource(f.Pairs)

	for _, pair := range cfg.Feed.Pairs {
		if err := f.Subscribe(pair); err != nil {
			logger.Error("failed to subscribe", "pair", pair, "error", err)
			os.Exit(1)
		}
	}

	if rec != nil {
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
	}
	f.Start(ctx)

	// Optional periodic change refresh
	refresher := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, f, f, logger.With("component", "poller"))
	if err := refresher.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	// HTTP API
	httpErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		gin.SetMode(cfg.HTTP.Mode)
		server := httpapi.NewServer(httpapi.Config{
			Addr:      cfg.HTTP.Addr,
			RateLimit: cfg.HTTP.RateLimit,
			RateBurst: cfg.HTTP.RateBurst,
			Build:     version.Current(),
		}, f, mgr, logger.With("component", "http"))

		go func() {
			httpErr <- server.ListenAndServe(ctx)
		}()
	}

	logger.Info("pricefeed running")

	// Wait for shutdown
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
		cancel()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Feed.ShutdownTimeout)
	defer shutdownCancel()

	if err := refresher.Stop(shutdownCtx); err != nil {
		logger.Warn("poller stop", "error", err)
	}
	if err := f.Close(shutdownCtx); err != nil {
		logger.Warn("feed close", "error", err)
	}
	if rec != nil {
		if err := rec.Stop(shutdownCtx); err != nil {
			logger.Warn("recorder stop", "error", err)
		}
		stats := rec.Stats()
		logger.Info("recorder totals",
			"inserts", stats.Inserts,
			"flushes", stats.Flushes,
			"errors", stats.Errors,
			"dropped", stats.Dropped,
		)
	}

	logger.Info("pricefeed stopped")
}

// newLogger builds the process logger from log settings.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
