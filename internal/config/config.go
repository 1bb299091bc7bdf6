package config

import "time"

// Config is the root configuration for a pricefeed instance.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	History  HistoryConfig  `yaml:"history"`
	Poller   PollerConfig   `yaml:"poller"`
	Database DatabaseConfig `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`

	// UnsetEnv lists ${VAR} references that were not set when the file was loaded.
	UnsetEnv []string `yaml:"-"`
}

// FeedConfig holds facade settings.
type FeedConfig struct {
	Pairs           []string      `yaml:"pairs"` // Subscribed at startup
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// APIConfig holds market REST API settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	RateLimit    float64       `yaml:"rate_limit"` // Requests per second (0 = unlimited)
	RateBurst    int           `yaml:"rate_burst"`
}

// StreamConfig holds WebSocket connection manager settings.
type StreamConfig struct {
	WSURL                 string        `yaml:"ws_url"`
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	ReadTimeout           time.Duration `yaml:"read_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	BufferSize            int           `yaml:"buffer_size"`
	InitialReconnectDelay time.Duration `yaml:"initial_reconnect_delay"`
	ReconnectBaseDelay    time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	PingInterval          time.Duration `yaml:"ping_interval"`
}

// HistoryConfig holds historical-change fetcher settings.
type HistoryConfig struct {
	Bar     string        `yaml:"bar"`
	Limit   int           `yaml:"limit"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollerConfig holds change refresher settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"` // 0 disables periodic refresh
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the optional Postgres connection for snapshot recording.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds snapshot batch writer settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HTTPConfig holds the HTTP API settings.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Mode    string `yaml:"mode"` // gin mode: debug, release or test

	RateLimit float64 `yaml:"rate_limit"` // Requests per second per client IP (0 = unlimited)
	RateBurst int     `yaml:"rate_burst"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
