package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/market"
	"github.com/rickgao/pricefeed/internal/prices"
)

// Errors
var (
	ErrClosed        = errors.New("feed closed")
	ErrNotSubscribed = errors.New("pair not subscribed")
)

// Stream is the outbound side of the Connection Manager. Send is called with
// the feed's mutex held, which keeps wire subscribe/unsubscribe order equal to
// call order; it must hand off rather than write to the socket.
type Stream interface {
	Open(ctx context.Context)
	Close()
	Send(req connection.Request)
}

// ChangeFetcher computes the 7-day change for a pair.
type ChangeFetcher interface {
	Fetch(ctx context.Context, pair string) (prices.Change, error)
}

// Observer is called with a copy of the stored entry after every applied update.
// It runs on the goroutine that applied the update and must not block.
type Observer func(pair string, info prices.PriceInfo)

// Option configures a Feed.
type Option func(*Feed)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver registers an update observer.
func WithObserver(o Observer) Option {
	return func(f *Feed) {
		if o != nil {
			f.observers = append(f.observers, o)
		}
	}
}

// Feed is the single owner of subscription and price state.
type Feed struct {
	stream    Stream
	fetcher   ChangeFetcher
	logger    *slog.Logger
	observers []Observer

	mu       sync.Mutex
	registry *market.Registry
	store    *prices.Store
	closed   bool

	// Base context for historical fetches, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Feed. stream and fetcher are required.
func New(stream Stream, fetcher ChangeFetcher, opts ...Option) *Feed {
	ctx, cancel := context.WithCancel(context.Background())

	f := &Feed{
		stream:   stream,
		fetcher:  fetcher,
		logger:   slog.Default(),
		registry: market.NewRegistry(),
		store:    prices.NewStore(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start opens the stream. Subscriptions made before Start are queued and sent
// once the connection opens.
func (f *Feed) Start(ctx context.Context) {
	f.stream.Open(ctx)
}

// Close stops the stream and waits for in-flight fetches until ctx expires.
func (f *Feed) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	// Not under f.mu: the stream's read loop calls HandleTick.
	f.stream.Close()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		f.logger.Warn("shutdown timeout, fetches still running")
		return ctx.Err()
	}
}

// Subscribe adds one reference to pair. The first reference sends the wire
// subscribe and starts a historical fetch; later ones retry the fetch while
// no change is known.
func (f *Feed) Subscribe(pair string) error {
	if _, _, err := market.ParsePair(pair); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	first, gen := f.registry.Acquire(pair)
	if first {
		f.stream.Send(connection.SubscribeRequest(pair))
		f.startFetchLocked(pair, gen)
		f.logger.Debug("subscribed", "pair", pair)
		return nil
	}

	if info, ok := f.store.Get(pair); !ok || !info.HasChange {
		f.startFetchLocked(pair, gen)
	}
	return nil
}

// Unsubscribe drops one reference. The last reference sends the wire
// unsubscribe and clears stored data. Unknown pairs are ignored.
func (f *Feed) Unsubscribe(pair string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.registry.Release(pair) {
		return
	}

	f.store.Clear(pair)
	f.stream.Send(connection.UnsubscribeRequest(pair))
	f.logger.Debug("unsubscribed", "pair", pair)
}

// QueryPrice returns a copy of the stored entry. ok is false when nothing is
// known yet.
func (f *Feed) QueryPrice(pair string) (prices.PriceInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.Get(pair)
}

// Prices returns a copy of every stored entry.
func (f *Feed) Prices() map[string]prices.PriceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.Snapshot()
}

// Pairs returns the subscribed pairs, sorted. It is the stream's PairSource.
func (f *Feed) Pairs() []string {
	return f.registry.Pairs()
}

// HandleTick applies a live price. Ticks for pairs no longer subscribed are dropped.
func (f *Feed) HandleTick(t connection.Tick) {
	f.mu.Lock()
	if !f.registry.Has(t.Pair) {
		f.mu.Unlock()
		return
	}
	info := f.store.ApplyLive(t.Pair, t.Last, t.Timestamp)
	f.mu.Unlock()

	f.notify(t.Pair, info)
}

// RefreshChange fetches the change for a subscribed pair synchronously.
func (f *Feed) RefreshChange(ctx context.Context, pair string) error {
	f.mu.Lock()
	gen, ok := f.registry.Generation(pair)
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return ErrNotSubscribed
	}

	change, err := f.fetcher.Fetch(ctx, pair)
	if err != nil {
		return err
	}

	f.applyChange(pair, gen, change)
	return nil
}

func (f *Feed) startFetchLocked(pair string, gen uint64) {
	f.wg.Add(1)
	go f.fetch(pair, gen)
}

// fetch runs one fire-and-forget historical fetch. Failures are logged and
// swallowed; a later Subscribe retries.
func (f *Feed) fetch(pair string, gen uint64) {
	defer f.wg.Done()

	change, err := f.fetcher.Fetch(f.ctx, pair)
	if err != nil {
		if f.ctx.Err() == nil {
			f.logger.Warn("historical change unavailable",
				"pair", pair,
				"error", err,
			)
		}
		return
	}

	f.applyChange(pair, gen, change)
}

// applyChange stores change unless the subscription it was fetched for is gone.
func (f *Feed) applyChange(pair string, gen uint64, change prices.Change) {
	f.mu.Lock()
	if !f.registry.Current(pair, gen) {
		f.mu.Unlock()
		f.logger.Debug("discarding stale change", "pair", pair, "generation", gen)
		return
	}
	info := f.store.ApplyChange(pair, change)
	f.mu.Unlock()

	f.notify(pair, info)
}

func (f *Feed) notify(pair string, info prices.PriceInfo) {
	for _, o := range f.observers {
		o(pair, info)
	}
}

// DeriveBaseSymbol returns the base of a "BASE-QUOTE" pair, or "" if malformed.
func DeriveBaseSymbol(pair string) string {
	return market.BaseSymbol(pair)
}

// IconURL returns the icon URL for a base symbol.
func IconURL(symbol string, opts market.IconOptions) string {
	return market.IconURL(symbol, opts)
}
