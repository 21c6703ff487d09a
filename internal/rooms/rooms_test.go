package rooms

import (
	"sort"
	"testing"
)

func TestJoin_Idempotent(t *testing.T) {
	m := NewManager()

	if !m.Join("c1", "r1") {
		t.Fatal("Join failed")
	}
	if !m.Join("c1", "r1") {
		t.Fatal("second Join failed")
	}

	members := m.Members("r1")
	if len(members) != 1 || members[0] != "c1" {
		t.Errorf("Members(r1) = %v, want [c1]", members)
	}
}

func TestJoin_RejectsEmpty(t *testing.T) {
	m := NewManager()
	if m.Join("", "r1") {
		t.Error("Join with empty conn id succeeded")
	}
	if m.Join("c1", "") {
		t.Error("Join with empty room succeeded")
	}
}

func TestLeave_DeletesEmptyRoom(t *testing.T) {
	m := NewManager()
	m.Join("c1", "r1")
	m.Join("c2", "r1")

	if !m.Leave("c1", "r1") {
		t.Fatal("Leave failed")
	}
	if m.RoomCount() != 1 {
		t.Errorf("RoomCount = %d, want 1", m.RoomCount())
	}

	m.Leave("c2", "r1")
	if m.RoomCount() != 0 {
		t.Errorf("RoomCount after last leave = %d, want 0", m.RoomCount())
	}

	// Leaving again is a no-op.
	if m.Leave("c2", "r1") {
		t.Error("Leave of non-member succeeded")
	}
}

func TestMultipleRooms(t *testing.T) {
	m := NewManager()
	m.Join("c1", "r1")
	m.Join("c1", "r2")
	m.Join("c1", "r3")

	rooms := m.RoomsOf("c1")
	sort.Strings(rooms)
	want := []string{"r1", "r2", "r3"}
	if len(rooms) != 3 {
		t.Fatalf("RoomsOf = %v, want %v", rooms, want)
	}
	for i, r := range want {
		if rooms[i] != r {
			t.Errorf("RoomsOf[%d] = %q, want %q", i, rooms[i], r)
		}
	}
}

func TestRemoveConnection_Cascade(t *testing.T) {
	m := NewManager()
	m.Join("c1", "r1")
	m.Join("c1", "r2")
	m.Join("c2", "r1")

	removed := m.RemoveConnection("c1")
	sort.Strings(removed)
	if len(removed) != 2 || removed[0] != "r1" || removed[1] != "r2" {
		t.Errorf("RemoveConnection = %v, want [r1 r2]", removed)
	}

	if got := m.RoomsOf("c1"); len(got) != 0 {
		t.Errorf("RoomsOf(c1) after removal = %v, want empty", got)
	}
	if m.InRoom("c1", "r1") {
		t.Error("c1 still a member of r1")
	}

	// r1 survives with c2; r2 was deleted.
	if got := m.Members("r1"); len(got) != 1 || got[0] != "c2" {
		t.Errorf("Members(r1) = %v, want [c2]", got)
	}
	if m.RoomCount() != 1 {
		t.Errorf("RoomCount = %d, want 1", m.RoomCount())
	}

	// Unknown connection is a no-op.
	if got := m.RemoveConnection("ghost"); got != nil {
		t.Errorf("RemoveConnection(ghost) = %v, want nil", got)
	}
}
