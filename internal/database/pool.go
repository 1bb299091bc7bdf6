package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/pricefeed/internal/config"
)

// Schema creates the tables written by the recorder.
const Schema = `
CREATE TABLE IF NOT EXISTS price_snapshots (
	pair          TEXT             NOT NULL,
	price         DOUBLE PRECISION,
	price_ts      BIGINT,
	change_7d_pct DOUBLE PRECISION,
	direction     TEXT             NOT NULL,
	batch_id      UUID             NOT NULL,
	recorded_at   TIMESTAMPTZ      NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS price_snapshots_pair_recorded_at
	ON price_snapshots (pair, recorded_at DESC);
`

// ApplicationName tags recorder sessions in pg_stat_activity.
const ApplicationName = "pricefeed-recorder"

// PoolConfig builds pool settings for the snapshot recorder from the
// database.postgres section. Sessions run in UTC so recorded_at reads the same
// from every client.
func PoolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("application_name", ApplicationName)
	query.Set("timezone", "UTC")

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}

	poolCfg, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config for %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MinConns = int32(cfg.MinConns)

	return poolCfg, nil
}

// Connect opens the recorder pool and checks it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
