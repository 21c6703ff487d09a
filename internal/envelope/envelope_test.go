package envelope

import (
	"encoding/json"
	"testing"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in   string
		want Destination
	}{
		{"self", DestinationSelf},
		{"others", DestinationOthers},
		{"all", DestinationAll},
		{"room", DestinationRoom},
		{"", DestinationSelf},
		{"broadcast", DestinationSelf},
		{"ALL", DestinationSelf},
	}

	for _, tt := range tests {
		if got := ParseDestination(tt.in); got != tt.want {
			t.Errorf("ParseDestination(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, s := range []string{"self", "others", "all", "room"} {
		if !Known(s) {
			t.Errorf("Known(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "everyone", "Room"} {
		if Known(s) {
			t.Errorf("Known(%q) = true, want false", s)
		}
	}
}

func TestValidate_RoomRequiresName(t *testing.T) {
	env := Envelope{Kind: "notify", Destination: DestinationRoom}
	if err := env.Validate(); err != ErrRoomRequired {
		t.Errorf("Validate() = %v, want ErrRoomRequired", err)
	}

	env.Room = "r1"
	if err := env.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	env := Envelope{
		Kind:        "relay",
		Destination: DestinationRoom,
		Room:        "r1",
		From:        "conn-1",
		Payload:     json.RawMessage(`{"text":"hi"}`),
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got Envelope
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.Kind != "relay" || got.Destination != DestinationRoom || got.Room != "r1" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if string(got.Payload) != `{"text":"hi"}` {
		t.Errorf("Payload = %s, want {\"text\":\"hi\"}", got.Payload)
	}
}
