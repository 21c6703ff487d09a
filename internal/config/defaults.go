package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultWriteWait          = 10 * time.Second
	DefaultPongWait           = 60 * time.Second
	DefaultMaxMessageSize     = 64 * 1024
	DefaultSendBufferSize     = 256
	DefaultChannel            = "relay_fanout"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 10000
	DefaultLogBufferCapacity  = 500
	DefaultReportInterval     = 1 * time.Minute
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}

	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.WriteWait == 0 {
		c.Server.WriteWait = DefaultWriteWait
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = DefaultPongWait
	}
	if c.Server.PingInterval == 0 {
		// Must be shorter than the pong wait or every connection
		// times out between pings.
		c.Server.PingInterval = c.Server.PongWait * 9 / 10
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = DefaultSendBufferSize
	}

	// Backplane defaults
	if c.Backplane.Channel == "" {
		c.Backplane.Channel = DefaultChannel
	}
	if c.Backplane.ReconnectBaseDelay == 0 {
		c.Backplane.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Backplane.ReconnectMaxDelay == 0 {
		c.Backplane.ReconnectMaxDelay = DefaultReconnectMaxDelay
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

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Log buffer defaults
	if c.LogBuffer.Capacity == 0 {
		c.LogBuffer.Capacity = DefaultLogBufferCapacity
	}

	// Metrics defaults
	if c.Metrics.ReportInterval == 0 {
		c.Metrics.ReportInterval = DefaultReportInterval
	}
}
