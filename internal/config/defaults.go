package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerHost       = "0.0.0.0"
	DefaultServerPort       = 8080
	DefaultUpstreamURL      = "wss://testnet.bitmex.com/realtime?subscribe=instrument"
	DefaultRetryDelay       = 3 * time.Second
	DefaultPacingDelay      = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultSendBufferSize   = 256
	DefaultWriteTimeout     = 5 * time.Second
	DefaultKafkaTopic       = "market.ticks"
	DefaultKafkaBufferSize  = 1000
	DefaultExchangeURL      = "https://testnet.bitmex.com"
	DefaultOrdersTimeout    = 30 * time.Second
	DefaultOrdersMaxRetries = 3
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Upstream defaults
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Upstream.RetryDelay == 0 {
		c.Upstream.RetryDelay = DefaultRetryDelay
	}
	if c.Upstream.PacingDelay == 0 {
		c.Upstream.PacingDelay = DefaultPacingDelay
	}
	if c.Upstream.HandshakeTimeout == 0 {
		c.Upstream.HandshakeTimeout = DefaultHandshakeTimeout
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
	if c.Session.SendBufferSize == 0 {
		c.Session.SendBufferSize = DefaultSendBufferSize
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}

	// Kafka defaults
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Kafka.BufferSize == 0 {
		c.Kafka.BufferSize = DefaultKafkaBufferSize
	}

	// Orders defaults
	if c.Orders.ExchangeURL == "" {
		c.Orders.ExchangeURL = DefaultExchangeURL
	}
	if c.Orders.Timeout == 0 {
		c.Orders.Timeout = DefaultOrdersTimeout
	}
	if c.Orders.MaxRetries == 0 {
		c.Orders.MaxRetries = DefaultOrdersMaxRetries
	}
}
