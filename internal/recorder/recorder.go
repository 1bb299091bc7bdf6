package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/pricefeed/internal/prices"
)

const insertSnapshot = `
	INSERT INTO price_snapshots (pair, price, price_ts, change_7d_pct, direction, batch_id, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// DB is the subset of pgxpool.Pool used for writes.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds recorder configuration.
type Config struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits in the batch
	BufferSize    int           // Observed updates buffered before dropping
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Metrics tracks recorder activity.
type Metrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

// snapshotRow is one price_snapshots row. Nil pointers are stored as NULL.
type snapshotRow struct {
	Pair        string
	Price       *float64
	PriceTs     *int64
	Change7dPct *float64
	Direction   string
	RecordedAt  time.Time
}

// Recorder batches observed snapshots into Postgres.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	db     DB

	input chan snapshotRow

	// Batching
	batch   []snapshotRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a new Recorder.
func New(cfg Config, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan snapshotRow, cfg.BufferSize),
		batch:  make([]snapshotRow, 0, cfg.BatchSize),
	}
}

// Observe queues a snapshot. It matches feed.Observer and never blocks.
func (r *Recorder) Observe(pair string, info prices.PriceInfo) {
	select {
	case r.input <- transform(pair, info, time.Now()):
	default:
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
	}
}

// Start begins consuming observations and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("snapshot recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered observations and writes a final batch.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping snapshot recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("snapshot recorder stop timed out")
		return ctx.Err()
	}

drain:
	for {
		select {
		case row := <-r.input:
			r.add(ctx, row)
		default:
			break drain
		}
	}

	// Final flush
	r.flush(ctx)
	r.logger.Info("snapshot recorder stopped")
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// run accumulates rows and flushes on size or interval.
func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case row := <-r.input:
			r.add(r.ctx, row)
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// add appends a row to the batch, flushing when it is full.
func (r *Recorder) add(ctx context.Context, row snapshotRow) {
	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(ctx)
	}
}

// transform converts an observed PriceInfo to a row.
func transform(pair string, info prices.PriceInfo, at time.Time) snapshotRow {
	row := snapshotRow{
		Pair:       pair,
		Direction:  info.Direction.String(),
		RecordedAt: at,
	}
	if info.HasPrice {
		price, ts := info.Price, info.Timestamp
		row.Price = &price
		row.PriceTs = &ts
	}
	if info.HasChange {
		pct := info.Change7dPct
		row.Change7dPct = &pct
	}
	return row
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]snapshotRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()
	batchID := uuid.New()

	if err := r.batchInsert(ctx, batchID, batch); err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch), "batch_id", batchID)
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch))
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed snapshots",
		"count", len(batch),
		"batch_id", batchID,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (r *Recorder) batchInsert(ctx context.Context, batchID uuid.UUID, rows []snapshotRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertSnapshot,
			row.Pair, row.Price, row.PriceTs, row.Change7dPct, row.Direction, batchID, row.RecordedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
