package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.Upstream.URL, "ws://") && !strings.HasPrefix(c.Upstream.URL, "wss://") {
		return fmt.Errorf("upstream.url must be a ws:// or wss:// URL, got %q", c.Upstream.URL)
	}
	if c.Upstream.RetryDelay <= 0 {
		return errors.New("upstream.retry_delay must be positive")
	}
	if c.Upstream.PacingDelay < 0 {
		return errors.New("upstream.pacing_delay must be >= 0")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Session.SendBufferSize < 1 {
		return errors.New("session.send_buffer_size must be >= 1")
	}

	if c.Kafka.Enabled && c.Kafka.Broker == "" {
		return errors.New("kafka.broker is required when kafka.enabled is true")
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
