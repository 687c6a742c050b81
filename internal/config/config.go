// Package config loads and validates collector configuration from YAML.
package config

import "time"

// CollectorConfig is the root configuration for a collector run.
type CollectorConfig struct {
	API      APIConfig     `yaml:"api"`
	Database DBConfig      `yaml:"database"`
	Session  SessionConfig `yaml:"session"`
	Sink     SinkConfig    `yaml:"sink"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	KeyID          string        `yaml:"key_id"`           // API key ID (KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// DBConfig holds the database connection for trades and snapshots.
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

// SessionConfig holds stream session settings.
type SessionConfig struct {
	SubscribeTimeout  time.Duration `yaml:"subscribe_timeout"`
	ReconnectBaseWait time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// SinkConfig holds persistence sink settings.
type SinkConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}
