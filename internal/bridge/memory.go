package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed bridge.
var ErrClosed = errors.New("bridge closed")

// Memory is an in-process Bridge. It fans every published payload out
// to all subscribers of the channel, including the publisher's own
// handler (echo suppression is the engine's job, by origin instance
// id). Used for single-process deployments and tests.
type Memory struct {
	mu     sync.Mutex
	subs   map[string][]func([]byte)
	closed bool
}

// NewMemory creates an in-process bridge.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]func([]byte))}
}

// Publish delivers the payload synchronously to every subscriber.
func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	handlers := make([]func([]byte), len(m.subs[channel]))
	copy(handlers, m.subs[channel])
	m.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// Subscribe registers a handler for a channel.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.subs[channel] = append(m.subs[channel], handler)
	return nil
}

// Close drops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string][]func([]byte))
	return nil
}
