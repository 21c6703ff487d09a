package logbuf

import (
	"sync"
	"time"
)

// DefaultCapacity is the ring size used when config leaves it unset.
const DefaultCapacity = 500

// Record is the retained log record shape.
type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Category   string         `json:"category,omitempty"`
	Message    string         `json:"message"`
	InstanceID string         `json:"instanceId"`
	Data       map[string]any `json:"data,omitempty"`
}

// Ring is a fixed-capacity buffer of Records, oldest-evicted. Safe for
// concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []Record
	head  int // next write position
	count int
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Snapshot returns the retained records, oldest first.
func (r *Ring) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the fixed capacity.
func (r *Ring) Capacity() int {
	return len(r.buf)
}
