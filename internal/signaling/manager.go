package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/meshrelay/relay/internal/envelope"
	"github.com/meshrelay/relay/internal/router"
)

// session is one live peer binding: within its room, peerID and connID
// map to each other and nothing else.
type session struct {
	room   string
	peerID string
	connID string
}

// Manager is the peer-signaling session manager. It runs as a router
// extension: every callback executes on the router's event loop, so no
// locking is needed on the session tables.
type Manager struct {
	logger *slog.Logger

	byConn map[string]*session          // connID -> session
	peers  map[string]map[string]string // room -> peerID -> connID
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		byConn: make(map[string]*session),
		peers:  make(map[string]map[string]string),
	}
}

// Name implements router.Extension.
func (m *Manager) Name() string { return "signaling" }

// Start implements router.Extension.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("signaling session manager started")
	return nil
}

// Stop implements router.Extension.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("signaling session manager stopped",
		"live_sessions", len(m.byConn),
	)
	return nil
}

// HandlesEnvelope implements router.Extension.
func (m *Manager) HandlesEnvelope(env envelope.Envelope) bool {
	return strings.HasPrefix(env.Kind, KindPrefix)
}

// HandleEnvelope implements router.Extension.
func (m *Manager) HandleEnvelope(originID string, env envelope.Envelope, s router.Sender) {
	switch env.Kind {
	case KindJoin:
		m.handleJoin(originID, env, s)
	case KindLeave:
		m.endSession(originID, "leave", s)
	case KindOffer, KindAnswer, KindCandidate:
		m.relay(originID, env, s)
	default:
		m.logger.Debug("ignoring unknown signaling kind", "kind", env.Kind, "conn_id", originID)
	}
}

// ConnectionClosed implements router.Extension: the teardown cascade.
// No orphaned peer session survives a dropped connection.
func (m *Manager) ConnectionClosed(connID string, s router.Sender) {
	m.endSession(connID, "disconnect", s)
}

// SessionCount returns the number of live peer sessions.
func (m *Manager) SessionCount() int {
	return len(m.byConn)
}

// PeersIn returns the peer ids with live sessions in a room.
func (m *Manager) PeersIn(room string) []string {
	set, ok := m.peers[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (m *Manager) handleJoin(originID string, env envelope.Envelope, s router.Sender) {
	var p JoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Room == "" {
		m.logger.Warn("dropping malformed join", "conn_id", originID, "error", err)
		return
	}

	if sess := m.byConn[originID]; sess != nil {
		m.logger.Warn("join ignored, connection already holds a peer session",
			"conn_id", originID,
			"room", sess.room,
			"peer_id", sess.peerID,
		)
		return
	}

	peerID := p.PeerID
	if peerID == "" {
		peerID = originID
	}

	if m.peers[p.Room] == nil {
		m.peers[p.Room] = make(map[string]string)
	}

	// Peer id collision: nothing enforces uniqueness externally, so the
	// policy is last-write-wins on the inverse map. The previous holder
	// loses its session, both directions at once.
	if prev, taken := m.peers[p.Room][peerID]; taken && prev != originID {
		m.logger.Warn("peer id collision, evicting previous session",
			"room", p.Room,
			"peer_id", peerID,
			"evicted_conn_id", prev,
			"conn_id", originID,
		)
		delete(m.byConn, prev)
		delete(m.peers[p.Room], peerID)
	}

	existing := m.PeersIn(p.Room)

	m.peers[p.Room][peerID] = originID
	m.byConn[originID] = &session{room: p.Room, peerID: peerID, connID: originID}

	reply, _ := json.Marshal(PeersPayload{Room: p.Room, PeerID: peerID, Peers: existing})
	s.SendTo(originID, envelope.Envelope{
		Kind:        KindPeers,
		Destination: envelope.DestinationSelf,
		Payload:     reply,
	})

	joined, _ := json.Marshal(PeerEventPayload{Room: p.Room, PeerID: peerID})
	s.SendToRoom(p.Room, originID, envelope.Envelope{
		Kind:    KindPeerJoined,
		From:    originID,
		Payload: joined,
	})

	m.logger.Debug("peer joined",
		"room", p.Room,
		"peer_id", peerID,
		"conn_id", originID,
		"existing_peers", len(existing),
	)
}

// relay forwards an offer, answer or candidate point-to-point to the
// resolved target connection. Unresolvable targets are dropped with a
// warning: signaling is idempotent at the application layer and
// callers re-offer on timeout.
func (m *Manager) relay(originID string, env envelope.Envelope, s router.Sender) {
	sess := m.byConn[originID]
	if sess == nil {
		m.logger.Warn("dropping signal from connection without a peer session",
			"kind", env.Kind,
			"conn_id", originID,
		)
		return
	}

	var p SignalPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.To == "" {
		m.logger.Warn("dropping malformed signal", "kind", env.Kind, "conn_id", originID, "error", err)
		return
	}

	target, ok := m.peers[sess.room][p.To]
	if !ok {
		m.logger.Warn("dropping signal for unknown peer",
			"kind", env.Kind,
			"room", sess.room,
			"to", p.To,
			"from", sess.peerID,
		)
		return
	}

	p.From = sess.peerID
	payload, _ := json.Marshal(p)

	// Point-to-point, never a room broadcast: signaling traffic must
	// not leak to uninvolved room members.
	s.SendTo(target, envelope.Envelope{
		Kind:        env.Kind,
		Destination: envelope.DestinationSelf,
		From:        originID,
		Payload:     payload,
	})
}

// endSession removes the peer session in both directions and notifies
// the remaining room members exactly once.
func (m *Manager) endSession(connID, cause string, s router.Sender) {
	sess := m.byConn[connID]
	if sess == nil {
		return
	}

	delete(m.byConn, connID)
	if set, ok := m.peers[sess.room]; ok {
		// Guard against the eviction case: only remove the inverse
		// entry if it still points at this connection.
		if set[sess.peerID] == connID {
			delete(set, sess.peerID)
		}
		if len(set) == 0 {
			delete(m.peers, sess.room)
		}
	}

	left, _ := json.Marshal(PeerEventPayload{Room: sess.room, PeerID: sess.peerID})
	s.SendToRoom(sess.room, connID, envelope.Envelope{
		Kind:    KindPeerLeft,
		From:    connID,
		Payload: left,
	})

	m.logger.Debug("peer session ended",
		"room", sess.room,
		"peer_id", sess.peerID,
		"conn_id", connID,
		"cause", cause,
	)
}
