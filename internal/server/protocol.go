package server

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Inbound wire actions.
const (
	ActionIdentify      = "identify"
	ActionJoinRoom      = "join-room"
	ActionLeaveRoom     = "leave-room"
	ActionSend          = "send"
	ActionGetICEServers = "get-ice-servers"
)

// Outbound frame kinds reserved by the transport. Everything else a
// client receives is a routed envelope passed through unwrapped.
const (
	KindAck        = "ack"
	KindICEServers = "ice-servers"
)

// inboundFrame is the union of all client request shapes. Action
// selects which of the remaining fields matter.
type inboundFrame struct {
	Action      string          `json:"action"`
	Identity    string          `json:"identity,omitempty"`
	Room        string          `json:"room,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ackPayload answers identify/join-room/leave-room requests.
type ackPayload struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}

// iceServersPayload answers get-ice-servers requests.
type iceServersPayload struct {
	Servers []webrtc.ICEServer `json:"servers"`
}
