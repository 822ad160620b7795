// Package channel provides the transport-agnostic publish/subscribe primitive
// that carries score and leaderboard traffic over a single logical connection.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	// ErrNotConnected is returned by Send while the channel has no live transport.
	// Callers must treat it as a distinguishable no-op, not a delivery.
	ErrNotConnected = errors.New("channel not connected")
	// ErrClosed is returned after Close; the channel cannot be reused.
	ErrClosed = errors.New("channel closed")
)

// Status is the connection lifecycle state exposed to views.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Handler receives the raw JSON payload of an event.
type Handler func(payload json.RawMessage)

// Sender is the outbound half of a channel, satisfied by both Channel
// implementations and by Outbox.
type Sender interface {
	Send(event string, payload any) error
}

// Channel wraps one logical connection keyed by participant id.
// Implementations are selected by dependency injection: a websocket-backed
// Socket for live use and an in-memory Loopback for tests and offline mode.
type Channel interface {
	Sender

	// Connect establishes the connection for the given participant id.
	// Calling Connect again while connected is a no-op.
	Connect(ctx context.Context, participantID string) error

	// On registers a handler for an event. Handlers for the same event run in
	// registration order. The returned release func removes the handler and is
	// safe to call more than once.
	On(event string, h Handler) (off func())

	IsConnected() bool
	Status() Status

	// Close tears the channel down; no reconnection is attempted afterwards.
	Close() error
}

// emitter is the shared handler registry. Both channel implementations embed
// it so subscription semantics stay identical across transports.
type emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription
}

type subscription struct {
	id int
	h  Handler
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[string][]subscription)}
}

func (e *emitter) On(event string, h Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers[event] = append(e.handlers[event], subscription{id: id, h: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.off(event, id) })
	}
}

func (e *emitter) off(event string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.handlers[event]
	for i, sub := range subs {
		if sub.id == id {
			e.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// emit invokes handlers synchronously in registration order. A snapshot is
// taken under the read lock so handlers may subscribe or release freely.
func (e *emitter) emit(event string, payload json.RawMessage) {
	e.mu.RLock()
	subs := make([]subscription, len(e.handlers[event]))
	copy(subs, e.handlers[event])
	e.mu.RUnlock()

	for _, sub := range subs {
		sub.h(payload)
	}
}
