package signaling

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sort"
	"testing"

	"github.com/meshrelay/relay/internal/envelope"
	"github.com/meshrelay/relay/internal/logbuf"
)

// fakeSender records everything the manager emits.
type fakeSender struct {
	direct     map[string][]envelope.Envelope // connID -> envelopes
	broadcasts []roomBroadcast
}

type roomBroadcast struct {
	room    string
	exclude string
	env     envelope.Envelope
}

func newFakeSender() *fakeSender {
	return &fakeSender{direct: make(map[string][]envelope.Envelope)}
}

func (f *fakeSender) SendTo(connID string, env envelope.Envelope) bool {
	f.direct[connID] = append(f.direct[connID], env)
	return true
}

func (f *fakeSender) SendToRoom(room, exclude string, env envelope.Envelope) {
	f.broadcasts = append(f.broadcasts, roomBroadcast{room: room, exclude: exclude, env: env})
}

func (f *fakeSender) InstanceID() string { return "test-instance" }

func join(t *testing.T, m *Manager, s *fakeSender, connID, room, peerID string) {
	t.Helper()
	payload, _ := json.Marshal(JoinPayload{Room: room, PeerID: peerID})
	m.HandleEnvelope(connID, envelope.Envelope{
		Kind:        KindJoin,
		Destination: envelope.DestinationSelf,
		Payload:     payload,
	}, s)
}

func TestHandlesEnvelope(t *testing.T) {
	m := NewManager(slog.Default())

	if !m.HandlesEnvelope(envelope.Envelope{Kind: KindOffer}) {
		t.Error("HandlesEnvelope(webrtc:offer) = false")
	}
	if m.HandlesEnvelope(envelope.Envelope{Kind: "notify"}) {
		t.Error("HandlesEnvelope(notify) = true")
	}
}

func TestJoin_RepliesWithPeersAndBroadcasts(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	join(t, m, s, "c1", "r1", "pA")
	join(t, m, s, "c2", "r1", "pB")

	// c2's reply lists pA.
	replies := s.direct["c2"]
	if len(replies) != 1 || replies[0].Kind != KindPeers {
		t.Fatalf("c2 direct = %v, want one %s", replies, KindPeers)
	}
	var peers PeersPayload
	if err := json.Unmarshal(replies[0].Payload, &peers); err != nil {
		t.Fatalf("bad peers payload: %v", err)
	}
	if peers.Room != "r1" || peers.PeerID != "pB" {
		t.Errorf("peers payload = %+v, want room r1 peer pB", peers)
	}
	if len(peers.Peers) != 1 || peers.Peers[0] != "pA" {
		t.Errorf("Peers = %v, want [pA]", peers.Peers)
	}

	// Two peer-joined broadcasts, each excluding the joiner.
	if len(s.broadcasts) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(s.broadcasts))
	}
	last := s.broadcasts[1]
	if last.room != "r1" || last.exclude != "c2" || last.env.Kind != KindPeerJoined {
		t.Errorf("broadcast = %+v, want peer-joined in r1 excluding c2", last)
	}
}

func TestJoin_DefaultsPeerIDToConnID(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	join(t, m, s, "c1", "r1", "")

	peers := m.PeersIn("r1")
	if len(peers) != 1 || peers[0] != "c1" {
		t.Errorf("PeersIn = %v, want [c1]", peers)
	}
}

func TestJoin_Bijection(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	conns := []string{"c1", "c2", "c3", "c4"}
	ids := []string{"p1", "p2", "p3", "p4"}
	for i, c := range conns {
		join(t, m, s, c, "r1", ids[i])
	}

	got := m.PeersIn("r1")
	sort.Strings(got)
	if len(got) != 4 {
		t.Fatalf("PeersIn = %v, want 4 peers", got)
	}
	for i, want := range ids {
		if got[i] != want {
			t.Errorf("PeersIn[%d] = %q, want %q", i, got[i], want)
		}
	}
	if m.SessionCount() != 4 {
		t.Errorf("SessionCount = %d, want 4", m.SessionCount())
	}

	// The inverse map resolves each peer id to its own connection:
	// an offer from p1 to p3 lands on c3 only.
	payload, _ := json.Marshal(SignalPayload{To: "p3", Data: json.RawMessage(`"sdp"`)})
	m.HandleEnvelope("c1", envelope.Envelope{Kind: KindOffer, Payload: payload}, s)

	offers := s.direct["c3"]
	if len(offers) != 1 || offers[0].Kind != KindOffer {
		t.Fatalf("c3 received %v, want one offer", offers)
	}
	var sig SignalPayload
	json.Unmarshal(offers[0].Payload, &sig)
	if sig.From != "p1" || sig.To != "p3" {
		t.Errorf("relayed signal = %+v, want from p1 to p3", sig)
	}
}

func TestRelay_UnknownPeerDroppedWithWarning(t *testing.T) {
	ring := logbuf.NewRing(16)
	logger := slog.New(logbuf.NewHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), ring, "i1"))

	m := NewManager(logger)
	s := newFakeSender()
	join(t, m, s, "c1", "r1", "pA")

	payload, _ := json.Marshal(SignalPayload{To: "pB"})
	m.HandleEnvelope("c1", envelope.Envelope{Kind: KindOffer, Payload: payload}, s)

	if got := s.direct["pB"]; got != nil {
		t.Errorf("unexpected delivery to pB: %v", got)
	}

	warnings := 0
	for _, rec := range ring.Snapshot() {
		if rec.Level == slog.LevelWarn.String() {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}
}

func TestRelay_WithoutSessionDropped(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	payload, _ := json.Marshal(SignalPayload{To: "pA"})
	m.HandleEnvelope("c1", envelope.Envelope{Kind: KindAnswer, Payload: payload}, s)

	if len(s.direct) != 0 {
		t.Errorf("unexpected deliveries: %v", s.direct)
	}
}

func TestConnectionClosed_RemovesSessionAndBroadcastsOnce(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	join(t, m, s, "c1", "r1", "pA")
	join(t, m, s, "c2", "r1", "pB")
	s.broadcasts = nil

	m.ConnectionClosed("c1", s)

	if m.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", m.SessionCount())
	}
	if got := m.PeersIn("r1"); len(got) != 1 || got[0] != "pB" {
		t.Errorf("PeersIn = %v, want [pB]", got)
	}

	if len(s.broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, want exactly 1", len(s.broadcasts))
	}
	b := s.broadcasts[0]
	if b.env.Kind != KindPeerLeft || b.room != "r1" {
		t.Errorf("broadcast = %+v, want peer-left in r1", b)
	}
	var left PeerEventPayload
	json.Unmarshal(b.env.Payload, &left)
	if left.PeerID != "pA" {
		t.Errorf("peer-left payload = %+v, want pA", left)
	}

	// Closing again is a no-op.
	m.ConnectionClosed("c1", s)
	if len(s.broadcasts) != 1 {
		t.Errorf("broadcasts after second close = %d, want 1", len(s.broadcasts))
	}
}

func TestJoin_PeerIDCollisionLastWriteWins(t *testing.T) {
	m := NewManager(slog.Default())
	s := newFakeSender()

	join(t, m, s, "c1", "r1", "pA")
	join(t, m, s, "c2", "r1", "pA")

	// The new connection owns the id; the evicted one has no session.
	if m.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", m.SessionCount())
	}

	payload, _ := json.Marshal(SignalPayload{To: "pA"})
	join(t, m, s, "c3", "r1", "pC")
	m.HandleEnvelope("c3", envelope.Envelope{Kind: KindOffer, Payload: payload}, s)

	if got := s.direct["c2"]; len(got) == 0 || got[len(got)-1].Kind != KindOffer {
		t.Errorf("offer to pA did not reach c2: %v", got)
	}
	if got := s.direct["c1"]; len(got) != 1 {
		// c1 only ever received its original peers reply.
		t.Errorf("evicted c1 received extra envelopes: %v", got)
	}
}
