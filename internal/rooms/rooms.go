package rooms

// Manager maps room name -> member connection ids and connection id ->
// joined room names. Rooms are created implicitly on first join and
// deleted when their last member leaves.
type Manager struct {
	members map[string]map[string]struct{} // room -> conn ids
	byConn  map[string]map[string]struct{} // conn id -> rooms
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		members: make(map[string]map[string]struct{}),
		byConn:  make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a room. Idempotent: joining a room already
// joined is a no-op returning true.
func (m *Manager) Join(connID, room string) bool {
	if connID == "" || room == "" {
		return false
	}
	if _, ok := m.members[room]; !ok {
		m.members[room] = make(map[string]struct{})
	}
	m.members[room][connID] = struct{}{}

	if _, ok := m.byConn[connID]; !ok {
		m.byConn[connID] = make(map[string]struct{})
	}
	m.byConn[connID][room] = struct{}{}
	return true
}

// Leave removes a connection from a room, deleting the room if it
// becomes empty. Returns false if the connection was not a member.
func (m *Manager) Leave(connID, room string) bool {
	set, ok := m.members[room]
	if !ok {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(m.members, room)
	}

	if rs, ok := m.byConn[connID]; ok {
		delete(rs, room)
		if len(rs) == 0 {
			delete(m.byConn, connID)
		}
	}
	return true
}

// Members returns the connection ids currently in a room on this
// instance. The returned slice is a copy.
func (m *Manager) Members(room string) []string {
	set, ok := m.members[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns the rooms a connection has joined. The returned
// slice is a copy.
func (m *Manager) RoomsOf(connID string) []string {
	set, ok := m.byConn[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for room := range set {
		out = append(out, room)
	}
	return out
}

// InRoom reports whether a connection is a member of a room.
func (m *Manager) InRoom(connID, room string) bool {
	set, ok := m.members[room]
	if !ok {
		return false
	}
	_, ok = set[connID]
	return ok
}

// RemoveConnection removes a connection from every room it occupies,
// deleting rooms left empty. Returns the rooms it was removed from.
// This is the teardown cascade fired by connection deregistration;
// skipping it leaks rooms indefinitely under churn.
func (m *Manager) RemoveConnection(connID string) []string {
	set, ok := m.byConn[connID]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(set))
	for room := range set {
		removed = append(removed, room)
		if members, ok := m.members[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(m.members, room)
			}
		}
	}
	delete(m.byConn, connID)
	return removed
}

// RoomCount returns the number of live rooms on this instance.
func (m *Manager) RoomCount() int {
	return len(m.members)
}
