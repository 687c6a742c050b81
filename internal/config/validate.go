package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.API.KeyID == "" {
		return errors.New("api.key_id is required")
	}
	if c.API.PrivateKeyPath == "" {
		return errors.New("api.private_key_path is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Session.MaxReconnects < 1 {
		return errors.New("session.max_reconnects must be >= 1")
	}
	if c.Session.BufferSize < 1 {
		return errors.New("session.buffer_size must be >= 1")
	}
	if c.Session.SubscribeTimeout <= 0 {
		return errors.New("session.subscribe_timeout must be positive")
	}
	if c.Session.PingTimeout <= 0 {
		return errors.New("session.ping_timeout must be positive")
	}
	if c.Session.WriteTimeout <= 0 {
		return errors.New("session.write_timeout must be positive")
	}
	if c.Session.ReconnectBaseWait <= 0 {
		return errors.New("session.reconnect_base_wait must be positive")
	}
	if c.Session.ReconnectMaxWait <= 0 {
		return errors.New("session.reconnect_max_wait must be positive")
	}

	if c.Sink.BatchSize < 1 {
		return errors.New("sink.batch_size must be >= 1")
	}
	if c.Sink.FlushInterval <= 0 {
		return errors.New("sink.flush_interval must be positive")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
