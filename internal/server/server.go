package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/meshrelay/relay/internal/envelope"
	"github.com/meshrelay/relay/internal/router"
)

// Config holds transport tuning.
type Config struct {
	WriteWait      time.Duration // Per-write deadline (default: 10s)
	PongWait       time.Duration // Read deadline between pongs (default: 60s)
	PingInterval   time.Duration // Must be below PongWait (default: 54s)
	MaxMessageSize int64         // Read limit in bytes (default: 64 KB)
	SendBufferSize int           // Outbound frames per connection (default: 256)
}

// DefaultConfig returns default transport tuning.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
	}
}

// Server accepts websocket connections and binds each to the router.
type Server struct {
	cfg      Config
	router   router.Router
	ice      []webrtc.ICEServer
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// New creates a Server. ice may be empty when signaling is disabled.
func New(cfg Config, rt router.Router, ice []webrtc.ICEServer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ice == nil {
		ice = []webrtc.ICEServer{}
	}
	return &Server{
		cfg:    cfg,
		router: rt,
		ice:    ice,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; auth, if
			// any, sits in front of the relay.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// HandleWS upgrades an HTTP request and runs the connection until it
// drops.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, s)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()

	s.router.Register(c)
	s.logger.Debug("connection accepted", "conn_id", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

// ClientCount returns the number of live connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes every connection and stops accepting new ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	s.logger.Info("transport shut down", "connections_closed", len(clients))
	return nil
}

// dropClient runs once per connection when its read pump exits.
func (s *Server) dropClient(c *Client) {
	c.close()

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.router.Deregister(c.id)
	s.logger.Debug("connection dropped", "conn_id", c.id)
}

// handleFrame dispatches one inbound frame. Runs on the client's read
// pump.
func (s *Server) handleFrame(c *Client, data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("dropping unparseable frame", "error", err)
		return
	}

	switch f.Action {
	case ActionIdentify:
		ok := f.Identity != "" && s.router.Identify(c.id, f.Identity)
		if ok {
			c.identity = f.Identity
		}
		c.sendAck(ActionIdentify, ok)

	case ActionJoinRoom:
		c.sendAck(ActionJoinRoom, s.router.Join(c.id, f.Room))

	case ActionLeaveRoom:
		c.sendAck(ActionLeaveRoom, s.router.Leave(c.id, f.Room))

	case ActionSend:
		if f.Destination != "" && !envelope.Known(f.Destination) {
			c.logger.Debug("unknown destination, falling back to self",
				"destination", f.Destination,
			)
		}
		s.router.Route(c.id, envelope.Envelope{
			Kind:        f.Kind,
			Destination: envelope.ParseDestination(f.Destination),
			Room:        f.Room,
			From:        c.from(),
			Payload:     f.Payload,
		})

	case ActionGetICEServers:
		payload, err := json.Marshal(iceServersPayload{Servers: s.ice})
		if err != nil {
			c.logger.Warn("failed to encode ice servers", "error", err)
			return
		}
		c.Deliver(envelope.Envelope{
			Kind:        KindICEServers,
			Destination: envelope.DestinationSelf,
			Payload:     payload,
		})

	default:
		c.logger.Warn("unknown action", "action", f.Action)
	}
}
