package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/meshrelay/relay/internal/envelope"
	"github.com/meshrelay/relay/internal/router"
)

// Recorder is the router extension feeding the write-behind buffers.
// Every callback is a non-blocking buffer send; when a buffer is full
// the record is dropped and counted, never the delivery.
type Recorder struct {
	instanceID string
	messages   *Buffer[MessageRecord]
	conns      *Buffer[ConnRecord]
	logger     *slog.Logger
}

// NewRecorder creates a Recorder writing into the given buffers.
func NewRecorder(instanceID string, messages *Buffer[MessageRecord], conns *Buffer[ConnRecord], logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		instanceID: instanceID,
		messages:   messages,
		conns:      conns,
		logger:     logger,
	}
}

func (r *Recorder) Name() string { return "store" }

// Start is a no-op: the batch writers draining the buffers have their
// own lifecycle.
func (r *Recorder) Start(ctx context.Context) error { return nil }

func (r *Recorder) Stop(ctx context.Context) error { return nil }

// HandlesEnvelope accepts everything: the store records all traffic.
func (r *Recorder) HandlesEnvelope(env envelope.Envelope) bool { return true }

func (r *Recorder) HandleEnvelope(originID string, env envelope.Envelope, s router.Sender) {
	ok := r.messages.Send(MessageRecord{
		InstanceID: r.instanceID,
		OriginID:   originID,
		Kind:       env.Kind,
		Dest:       env.Destination,
		Room:       env.Room,
		Payload:    env.Payload,
		RoutedAt:   time.Now(),
	})
	if !ok {
		r.logger.Warn("message buffer full, record dropped", "kind", env.Kind)
	}
}

func (r *Recorder) ConnectionOpened(connID string) {
	r.record(connID, ConnEventConnected, "")
}

func (r *Recorder) ConnectionIdentified(connID, identity string) {
	r.record(connID, ConnEventIdentified, identity)
}

func (r *Recorder) ConnectionClosed(connID string, s router.Sender) {
	r.record(connID, ConnEventDisconnected, "")
}

func (r *Recorder) record(connID string, event ConnEventKind, identity string) {
	ok := r.conns.Send(ConnRecord{
		InstanceID: r.instanceID,
		ConnID:     connID,
		Event:      event,
		Identity:   identity,
		OccurredAt: time.Now(),
	})
	if !ok {
		r.logger.Warn("connection buffer full, record dropped", "event", event)
	}
}
