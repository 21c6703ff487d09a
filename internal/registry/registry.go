package registry

// Connection is a live transport connection known to this instance.
type Connection struct {
	// ID is assigned by the transport layer and unique per instance.
	ID string

	// Identity is an opaque caller-supplied string, set at most once.
	// Never validated and never enforced unique.
	Identity string

	identified bool
}

// Identified reports whether an identity has been declared.
func (c *Connection) Identified() bool {
	return c.identified
}

// Registry maps connection ids to Connections. Single-goroutine owner;
// see package doc.
type Registry struct {
	conns map[string]*Connection
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register adds a connection. Re-registering an existing id returns the
// existing entry unchanged.
func (r *Registry) Register(id string) *Connection {
	if c, ok := r.conns[id]; ok {
		return c
	}
	c := &Connection{ID: id}
	r.conns[id] = c
	return c
}

// SetIdentity declares the identity for a connection. Returns false if
// the connection is unknown or already identified.
func (r *Registry) SetIdentity(id, identity string) bool {
	c, ok := r.conns[id]
	if !ok || c.identified {
		return false
	}
	c.Identity = identity
	c.identified = true
	return true
}

// Get looks up a connection. Unknown ids are a non-fatal miss.
func (r *Registry) Get(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Deregister removes a connection. Returns the removed entry, or nil if
// the id was unknown (a no-op).
func (r *Registry) Deregister(id string) *Connection {
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	return c
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Each calls fn for every registered connection.
func (r *Registry) Each(fn func(*Connection)) {
	for _, c := range r.conns {
		fn(c)
	}
}
