// Package signaling implements the mesh peer-handshake session manager.
//
// It is layered entirely on routed envelopes whose kind carries the
// "webrtc:" prefix, observed after the router has performed ordinary
// delivery. Peer sessions bind a caller-chosen peer id to a connection
// id within a room; offer/answer/candidate traffic is relayed
// point-to-point through that binding, never broadcast. Topology is
// mesh: with N peers, N*(N-1)/2 point-to-point handshakes are
// expected, which caps practical rooms at a handful of participants.
package signaling
