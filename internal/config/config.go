package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DBConfig       `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Orders   OrdersConfig   `yaml:"orders"`
}

// ServerConfig holds the client-facing HTTP/WebSocket server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// UpstreamConfig holds market-data endpoint settings.
type UpstreamConfig struct {
	// URL is the streaming endpoint. The instrument topic is part of the
	// query string; no post-connect subscribe message is sent.
	URL              string        `yaml:"url"`
	RetryDelay       time.Duration `yaml:"retry_delay"`       // Fixed delay between reconnect attempts
	PacingDelay      time.Duration `yaml:"pacing_delay"`      // Delay after each inbound message
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // WebSocket dial timeout
}

// DBConfig holds the PostgreSQL connection for accounts and orders.
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

// SessionConfig holds per-client session settings.
type SessionConfig struct {
	SendBufferSize int           `yaml:"send_buffer_size"` // Outbound frame buffer per client
	WriteTimeout   time.Duration `yaml:"write_timeout"`    // Write deadline for client frames
}

// KafkaConfig holds the optional tick mirror settings.
type KafkaConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"`
	Topic      string `yaml:"topic"`
	BufferSize int    `yaml:"buffer_size"`
}

// OrdersConfig holds the exchange REST proxy settings.
type OrdersConfig struct {
	ExchangeURL string        `yaml:"exchange_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}
