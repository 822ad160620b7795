package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Loopback is the in-memory Channel used in tests and offline mode. Sends are
// echoed back to local subscribers of the same event, which matches what a
// single-client session observes against a broadcasting server.
type Loopback struct {
	*emitter

	mu            sync.Mutex
	status        Status
	closed        bool
	participantID string
	sent          []SentMessage
}

// SentMessage records one outbound payload for test inspection.
type SentMessage struct {
	Event   string
	Payload json.RawMessage
}

func NewLoopback() *Loopback {
	return &Loopback{emitter: newEmitter(), status: StatusDisconnected}
}

func (l *Loopback) Connect(_ context.Context, participantID string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.status == StatusConnected {
		l.mu.Unlock()
		return nil
	}
	l.participantID = participantID
	l.status = StatusConnected
	l.mu.Unlock()

	l.emit(EventConnected, nil)
	return nil
}

func (l *Loopback) Send(event string, payload any) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.status != StatusConnected {
		l.mu.Unlock()
		return ErrNotConnected
	}
	l.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	l.mu.Lock()
	l.sent = append(l.sent, SentMessage{Event: event, Payload: raw})
	l.mu.Unlock()

	l.emit(event, raw)
	return nil
}

func (l *Loopback) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status == StatusConnected
}

func (l *Loopback) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.status = StatusDisconnected
	l.mu.Unlock()

	l.emit(EventDisconnected, nil)
	return nil
}

// Drop simulates an unexpected transport loss without closing the channel.
func (l *Loopback) Drop() {
	l.mu.Lock()
	l.status = StatusDisconnected
	l.mu.Unlock()
	l.emit(EventError, json.RawMessage(`{"message":"connection dropped"}`))
}

// Restore simulates a successful reconnect after Drop.
func (l *Loopback) Restore() {
	l.mu.Lock()
	l.status = StatusConnected
	l.mu.Unlock()
	l.emit(EventConnected, nil)
}

// Inject delivers an inbound event as if it arrived from the server.
func (l *Loopback) Inject(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	l.emit(event, raw)
	return nil
}

// Sent returns a copy of everything sent so far.
func (l *Loopback) Sent() []SentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SentMessage, len(l.sent))
	copy(out, l.sent)
	return out
}
