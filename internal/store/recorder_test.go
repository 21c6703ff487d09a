package store

import (
	"encoding/json"
	"testing"

	"github.com/meshrelay/relay/internal/envelope"
)

func TestRecorder_RecordsEnvelope(t *testing.T) {
	messages := NewBuffer[MessageRecord](4)
	conns := NewBuffer[ConnRecord](4)
	rec := NewRecorder("i1", messages, conns, nil)

	rec.HandleEnvelope("c1", envelope.Envelope{
		Kind:        "notify",
		Destination: envelope.DestinationRoom,
		Room:        "r1",
		Payload:     json.RawMessage(`{"a":1}`),
	}, nil)

	row, ok := messages.TryReceive()
	if !ok {
		t.Fatal("no message record")
	}
	if row.InstanceID != "i1" || row.OriginID != "c1" || row.Kind != "notify" {
		t.Errorf("record = %+v, want i1/c1/notify", row)
	}
	if row.Dest != envelope.DestinationRoom || row.Room != "r1" {
		t.Errorf("record = %+v, want room/r1", row)
	}
	if row.RoutedAt.IsZero() {
		t.Error("RoutedAt not set")
	}
}

func TestRecorder_ConnectionLifecycle(t *testing.T) {
	messages := NewBuffer[MessageRecord](4)
	conns := NewBuffer[ConnRecord](4)
	rec := NewRecorder("i1", messages, conns, nil)

	rec.ConnectionOpened("c1")
	rec.ConnectionIdentified("c1", "alice")
	rec.ConnectionClosed("c1", nil)

	want := []struct {
		event    ConnEventKind
		identity string
	}{
		{ConnEventConnected, ""},
		{ConnEventIdentified, "alice"},
		{ConnEventDisconnected, ""},
	}
	for i, w := range want {
		row, ok := conns.TryReceive()
		if !ok {
			t.Fatalf("missing record %d", i)
		}
		if row.Event != w.event || row.Identity != w.identity {
			t.Errorf("record %d = %+v, want %v %q", i, row, w.event, w.identity)
		}
		if row.ConnID != "c1" {
			t.Errorf("record %d conn = %q, want c1", i, row.ConnID)
		}
	}
}

func TestRecorder_FullBufferDrops(t *testing.T) {
	messages := NewBuffer[MessageRecord](1)
	conns := NewBuffer[ConnRecord](1)
	rec := NewRecorder("i1", messages, conns, nil)

	rec.HandleEnvelope("c1", envelope.Envelope{Kind: "a", Destination: envelope.DestinationSelf}, nil)
	rec.HandleEnvelope("c1", envelope.Envelope{Kind: "b", Destination: envelope.DestinationSelf}, nil)

	if got := messages.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}
