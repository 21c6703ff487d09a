package store

import (
	"time"

	"github.com/meshrelay/relay/internal/envelope"
)

// WriterConfig holds batch writer tuning.
type WriterConfig struct {
	BatchSize     int           // Default: 500
	FlushInterval time.Duration // Default: 1s
	BufferSize    int           // Default: 10000
}

// DefaultWriterConfig returns default writer tuning.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics counts writer outcomes.
type WriterMetrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// MessageRecord is one routed envelope destined for the messages table.
type MessageRecord struct {
	InstanceID string
	OriginID   string
	Kind       string
	Dest       envelope.Destination
	Room       string
	Payload    []byte
	RoutedAt   time.Time
}

// ConnEventKind distinguishes connection lifecycle rows.
type ConnEventKind string

const (
	ConnEventConnected    ConnEventKind = "connected"
	ConnEventIdentified   ConnEventKind = "identified"
	ConnEventDisconnected ConnEventKind = "disconnected"
)

// ConnRecord is one connection lifecycle event for the connections table.
type ConnRecord struct {
	InstanceID string
	ConnID     string
	Event      ConnEventKind
	Identity   string
	OccurredAt time.Time
}
