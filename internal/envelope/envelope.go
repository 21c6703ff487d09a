package envelope

import (
	"encoding/json"
	"errors"
)

// Destination selects the delivery set for an envelope.
type Destination string

const (
	// DestinationSelf delivers only to the origin connection.
	DestinationSelf Destination = "self"

	// DestinationOthers delivers to every connection except the origin.
	DestinationOthers Destination = "others"

	// DestinationAll delivers to every connection including the origin.
	DestinationAll Destination = "all"

	// DestinationRoom delivers to the members of a named room.
	DestinationRoom Destination = "room"
)

// ParseDestination maps a raw destination string to a Destination.
// Unknown or empty values fall back to DestinationSelf: a malformed
// destination must never widen the delivery set.
func ParseDestination(s string) Destination {
	switch Destination(s) {
	case DestinationOthers:
		return DestinationOthers
	case DestinationAll:
		return DestinationAll
	case DestinationRoom:
		return DestinationRoom
	default:
		return DestinationSelf
	}
}

// Known reports whether s is one of the four destination values.
func Known(s string) bool {
	switch Destination(s) {
	case DestinationSelf, DestinationOthers, DestinationAll, DestinationRoom:
		return true
	}
	return false
}

// ErrRoomRequired is returned when a room destination lacks a room name.
var ErrRoomRequired = errors.New("room destination requires a room name")

// Envelope is the unit of routing. Immutable once routed; the router
// only decides the delivery set.
type Envelope struct {
	Kind        string          `json:"kind"`
	Destination Destination     `json:"destination"`
	Room        string          `json:"room,omitempty"`
	From        string          `json:"from,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Validate checks required-field consistency.
func (e Envelope) Validate() error {
	if e.Destination == DestinationRoom && e.Room == "" {
		return ErrRoomRequired
	}
	return nil
}
