package router

import (
	"context"

	"github.com/meshrelay/relay/internal/envelope"
)

// Config holds router tuning.
type Config struct {
	// InstanceID tags published bridge events and is compared against
	// incoming events to drop echoes.
	InstanceID string

	// BridgeChannel is the logical backplane channel. Default:
	// bridge.DefaultChannel.
	BridgeChannel string

	// OpBuffer is the event loop's input queue size. Default: 1024.
	OpBuffer int
}

// DefaultConfig returns default router tuning for an instance.
func DefaultConfig(instanceID string) Config {
	return Config{
		InstanceID:    instanceID,
		BridgeChannel: "relay_fanout",
		OpBuffer:      1024,
	}
}

// Conn is the delivery surface a transport connection exposes to the
// router. Deliver must not block; it returns false when the connection
// has gone stale and the envelope was dropped.
type Conn interface {
	ID() string
	Deliver(env envelope.Envelope) bool
}

// Sender is the narrow surface extensions use to emit envelopes back
// through the engine. Only valid from within an extension callback,
// which runs on the event loop.
type Sender interface {
	// SendTo delivers an envelope point-to-point to one local
	// connection. Returns false if the connection is unknown or stale.
	SendTo(connID string, env envelope.Envelope) bool

	// SendToRoom delivers an envelope to the local members of a room,
	// excluding one connection id (pass "" to exclude none), and
	// replicates it to sibling instances.
	SendToRoom(room, exclude string, env envelope.Envelope)

	// InstanceID returns the local instance id.
	InstanceID() string
}

// Extension is a capability provider layered on the router: a
// secondary consumer of locally routed envelopes. Callbacks run on the
// event loop and must not block.
type Extension interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// HandlesEnvelope reports whether the extension wants env.
	HandlesEnvelope(env envelope.Envelope) bool

	// HandleEnvelope observes an envelope after ordinary delivery.
	HandleEnvelope(originID string, env envelope.Envelope, s Sender)

	// ConnectionClosed is the teardown cascade: fired once per
	// deregistered connection, after room membership cleanup.
	ConnectionClosed(connID string, s Sender)
}

// ConnObserver is an optional Extension upgrade for providers that
// track connection lifecycle beyond teardown.
type ConnObserver interface {
	ConnectionOpened(connID string)
	ConnectionIdentified(connID, identity string)
}

// CounterSample is one per-(kind, destination) message count.
type CounterSample struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Count       int64  `json:"count"`
}

// Stats is a point-in-time snapshot of router counters.
type Stats struct {
	Connections    int             `json:"connections"`
	Rooms          int             `json:"rooms"`
	Routed         int64           `json:"routed"`
	Delivered      int64           `json:"delivered"`
	DroppedStale   int64           `json:"droppedStale"`
	Malformed      int64           `json:"malformed"`
	Published      int64           `json:"published"`
	PublishErrors  int64           `json:"publishErrors"`
	BridgeReceived int64           `json:"bridgeReceived"`
	BridgeEchoes   int64           `json:"bridgeEchoes"`
	Counters       []CounterSample `json:"counters"`
}
