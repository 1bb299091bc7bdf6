package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultShutdownTimeout       = 10 * time.Second
	DefaultRestURL               = "https://www.okx.com"
	DefaultAPITimeout            = 10 * time.Second
	DefaultMaxRetries            = 2
	DefaultRetryBackoff          = 500 * time.Millisecond
	DefaultRateBurst             = 1
	DefaultWSURL                 = "wss://ws.okx.com:8443/ws/v5/public"
	DefaultHandshakeTimeout      = 10 * time.Second
	DefaultReadTimeout           = 60 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultStreamBufferSize      = 1000
	DefaultInitialReconnectDelay = 1500 * time.Millisecond
	DefaultReconnectBaseDelay    = 1 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultPingInterval          = 20 * time.Second
	DefaultHistoryBar            = "1D"
	DefaultHistoryLimit          = 8
	DefaultHistoryTimeout        = 10 * time.Second
	DefaultPollConcurrency       = 4
	DefaultPollTimeout           = 10 * time.Second
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 4
	DefaultMinConns              = 1
	DefaultBatchSize             = 500
	DefaultFlushInterval         = 1 * time.Second
	DefaultBufferSize            = 10000
	DefaultHTTPAddr              = ":8080"
	DefaultHTTPMode              = "release"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
)

func (c *Config) applyDefaults() {
	// Feed defaults
	if c.Feed.ShutdownTimeout == 0 {
		c.Feed.ShutdownTimeout = DefaultShutdownTimeout
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Stream defaults
	if c.Stream.WSURL == "" {
		c.Stream.WSURL = DefaultWSURL
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}
	if c.Stream.InitialReconnectDelay == 0 {
		c.Stream.InitialReconnectDelay = DefaultInitialReconnectDelay
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}

	// History defaults
	if c.History.Bar == "" {
		c.History.Bar = DefaultHistoryBar
	}
	if c.History.Limit == 0 {
		c.History.Limit = DefaultHistoryLimit
	}
	if c.History.Timeout == 0 {
		c.History.Timeout = DefaultHistoryTimeout
	}

	// Poller defaults (interval stays 0: disabled unless configured)
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// HTTP defaults
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.Mode == "" {
		c.HTTP.Mode = DefaultHTTPMode
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
