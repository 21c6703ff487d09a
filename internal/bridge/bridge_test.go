package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/meshrelay/relay/internal/envelope"
)

func TestEventEncodeDecode(t *testing.T) {
	ev := Event{
		Origin:      "inst-1",
		Destination: "room",
		Room:        "r1",
		Kind:        "notify",
		From:        "c1",
		Payload:     []byte(`{"x":1}`),
	}

	data, err := ev.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if got.Origin != "inst-1" || got.Destination != "room" || got.Room != "r1" {
		t.Errorf("decoded event mismatch: %+v", got)
	}
	if got.Kind != "notify" || got.From != "c1" {
		t.Errorf("decoded event mismatch: %+v", got)
	}
	if string(got.Payload) != `{"x":1}` {
		t.Errorf("Payload = %s, want {\"x\":1}", got.Payload)
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	if _, err := DecodeEvent([]byte("not msgpack at all")); err == nil {
		t.Error("DecodeEvent accepted garbage")
	}
}

func TestEventFromEnvelope_RoundTrip(t *testing.T) {
	env := envelope.Envelope{
		Kind:        "relay",
		Destination: envelope.DestinationOthers,
		From:        "c9",
		Payload:     json.RawMessage(`"hello"`),
	}

	got := EventFromEnvelope("inst-2", env).Envelope()
	if got.Kind != env.Kind || got.Destination != env.Destination || got.From != env.From {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if string(got.Payload) != `"hello"` {
		t.Errorf("Payload = %s, want \"hello\"", got.Payload)
	}
}

func TestMemoryBridge_FanOut(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var got [][]byte
	if err := m.Subscribe(ctx, DefaultChannel, func(p []byte) {
		got = append(got, p)
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := m.Publish(ctx, DefaultChannel, []byte("a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := m.Publish(ctx, "unrelated", []byte("b")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(got) != 1 || string(got[0]) != "a" {
		t.Errorf("received %q, want [a]", got)
	}
}

func TestMemoryBridge_Close(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Subscribe(ctx, DefaultChannel, func([]byte) { t.Error("handler called after close") })
	m.Close()

	if err := m.Publish(ctx, DefaultChannel, []byte("x")); err != ErrClosed {
		t.Errorf("Publish after close = %v, want ErrClosed", err)
	}
	if err := m.Subscribe(ctx, DefaultChannel, func([]byte) {}); err != ErrClosed {
		t.Errorf("Subscribe after close = %v, want ErrClosed", err)
	}
}
