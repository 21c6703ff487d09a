package bridge

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/meshrelay/relay/internal/envelope"
)

// DefaultChannel is the single logical channel the engine uses.
const DefaultChannel = "relay_fanout"

// Bridge is the capability surface the engine requires from a
// backplane transport. Implementations provide their own reconnection
// policy; the engine treats publish failures as non-fatal.
type Bridge interface {
	// Publish sends a serialized event on a channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers a handler for events on a channel. The
	// handler may be invoked from the bridge's own goroutine.
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error

	// Close releases the bridge's resources.
	Close() error
}

// Event is the replicated unit: a local broadcast tagged with its
// origin instance so receivers can drop echoes.
type Event struct {
	Origin      string `msgpack:"origin"`
	Destination string `msgpack:"destination"`
	Room        string `msgpack:"room,omitempty"`
	Kind        string `msgpack:"kind"`
	From        string `msgpack:"from,omitempty"`
	Payload     []byte `msgpack:"payload,omitempty"`
}

// EventFromEnvelope builds a replication event for an envelope routed
// on the given origin instance.
func EventFromEnvelope(origin string, env envelope.Envelope) Event {
	return Event{
		Origin:      origin,
		Destination: string(env.Destination),
		Room:        env.Room,
		Kind:        env.Kind,
		From:        env.From,
		Payload:     []byte(env.Payload),
	}
}

// Envelope reconstructs the routed envelope carried by an event.
func (e Event) Envelope() envelope.Envelope {
	return envelope.Envelope{
		Kind:        e.Kind,
		Destination: envelope.ParseDestination(e.Destination),
		Room:        e.Room,
		From:        e.From,
		Payload:     e.Payload,
	}
}

// Encode serializes the event for the backplane.
func (e Event) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode bridge event: %w", err)
	}
	return data, nil
}

// DecodeEvent deserializes a backplane payload.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode bridge event: %w", err)
	}
	return e, nil
}
