package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/prices"
	"github.com/rickgao/pricefeed/internal/version"
)

// PriceFeed is the facade surface served over HTTP.
type PriceFeed interface {
	Subscribe(pair string) error
	Unsubscribe(pair string)
	QueryPrice(pair string) (prices.PriceInfo, bool)
	Prices() map[string]prices.PriceInfo
	Pairs() []string
}

// StreamStats reports connection state for /health.
type StreamStats interface {
	Stats() connection.Stats
}

// Config holds server settings.
type Config struct {
	Addr      string
	RateLimit float64 // Requests per second per client IP (0 = unlimited)
	RateBurst int
	Build     version.Build
}

// Server wires HTTP endpoints around the feed.
type Server struct {
	Router *gin.Engine

	cfg    Config
	feed   PriceFeed
	stream StreamStats
	logger *slog.Logger
}

// NewServer builds the router. stream may be nil.
func NewServer(cfg Config, feed PriceFeed, stream StreamStats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()

	// Middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger))
	if cfg.RateLimit > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}

	s := &Server{
		Router: r,
		cfg:    cfg,
		feed:   feed,
		stream: stream,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	s.Router.GET("/prices", s.listPrices)
	s.Router.GET("/prices/:pair", s.getPrice)

	s.Router.GET("/subscriptions", s.listSubscriptions)
	s.Router.PUT("/subscriptions/:pair", s.subscribe)
	s.Router.DELETE("/subscriptions/:pair", s.unsubscribe)

	s.Router.GET("/icons/:symbol", s.icon)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
