package signaling

import "encoding/json"

// KindPrefix namespaces every signaling envelope kind.
const KindPrefix = "webrtc:"

// Inbound kinds (requests from peers).
const (
	KindJoin      = KindPrefix + "join"
	KindLeave     = KindPrefix + "leave"
	KindOffer     = KindPrefix + "offer"
	KindAnswer    = KindPrefix + "answer"
	KindCandidate = KindPrefix + "candidate"
)

// Outbound kinds (events emitted by the manager).
const (
	KindPeers      = KindPrefix + "peers"
	KindPeerJoined = KindPrefix + "peer-joined"
	KindPeerLeft   = KindPrefix + "peer-left"
)

// JoinPayload is the body of a webrtc:join request. PeerID defaults to
// the connection id when omitted.
type JoinPayload struct {
	Room   string `json:"room"`
	PeerID string `json:"peerId,omitempty"`
}

// SignalPayload is the body of offer, answer and candidate envelopes.
// Data carries the SDP or ICE candidate verbatim; the manager never
// parses it. From is stamped by the manager on relay.
type SignalPayload struct {
	To   string          `json:"to"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PeersPayload is the reply to a successful join: the peer ids already
// present in the room, plus the id assigned to the joiner.
type PeersPayload struct {
	Room   string   `json:"room"`
	PeerID string   `json:"peerId"`
	Peers  []string `json:"peers"`
}

// PeerEventPayload is the body of peer-joined and peer-left broadcasts.
type PeerEventPayload struct {
	Room   string `json:"room"`
	PeerID string `json:"peerId"`
}
