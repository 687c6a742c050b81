package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultWSURL             = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultSubscribeTimeout  = 10 * time.Second
	DefaultReconnectBaseWait = 1 * time.Second
	DefaultReconnectMaxWait  = 60 * time.Second
	DefaultMaxReconnects     = 10
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBufferSize        = 10000
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
)

func (c *CollectorConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Session defaults
	if c.Session.SubscribeTimeout == 0 {
		c.Session.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Session.ReconnectBaseWait == 0 {
		c.Session.ReconnectBaseWait = DefaultReconnectBaseWait
	}
	if c.Session.ReconnectMaxWait == 0 {
		c.Session.ReconnectMaxWait = DefaultReconnectMaxWait
	}
	if c.Session.MaxReconnects == 0 {
		c.Session.MaxReconnects = DefaultMaxReconnects
	}
	if c.Session.PingTimeout == 0 {
		c.Session.PingTimeout = DefaultPingTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.BufferSize == 0 {
		c.Session.BufferSize = DefaultBufferSize
	}

	// Sink defaults
	if c.Sink.BatchSize == 0 {
		c.Sink.BatchSize = DefaultBatchSize
	}
	if c.Sink.FlushInterval == 0 {
		c.Sink.FlushInterval = DefaultFlushInterval
	}
}
