package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshrelay/relay/internal/envelope"
)

// Client wraps one websocket connection. It implements router.Conn:
// the router delivers envelopes through the buffered send channel,
// which the write pump drains onto the socket.
type Client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	// identity is set after a successful identify. Written and read
	// only on the read pump goroutine.
	identity string

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	logger    *slog.Logger
}

func newClient(id string, conn *websocket.Conn, srv *Server) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		srv:    srv,
		send:   make(chan []byte, srv.cfg.SendBufferSize),
		done:   make(chan struct{}),
		logger: srv.logger.With("conn_id", id),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Deliver hands a routed envelope to the write pump. It never blocks:
// a full send buffer or a closed connection drops the frame and
// reports false.
func (c *Client) Deliver(env envelope.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("failed to encode envelope", "kind", env.Kind, "error", err)
		return false
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("send buffer full, dropping frame")
		return false
	}
}

func (c *Client) sendAck(action string, ok bool) {
	payload, _ := json.Marshal(ackPayload{Action: action, OK: ok})
	c.Deliver(envelope.Envelope{
		Kind:        KindAck,
		Destination: envelope.DestinationSelf,
		Payload:     payload,
	})
}

// from is the value stamped into outgoing envelopes: the declared
// identity, or the connection id before identification.
func (c *Client) from() string {
	if c.identity != "" {
		return c.identity
	}
	return c.id
}

// close makes Deliver fail fast and unblocks the write pump. Safe to
// call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads frames off the socket and dispatches them. It owns
// the connection's read side; exit tears the connection down.
func (c *Client) readPump() {
	defer func() {
		c.srv.dropClient(c)
	}()

	c.conn.SetReadLimit(c.srv.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		c.srv.handleFrame(c, data)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. It owns the connection's write side.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.srv.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
