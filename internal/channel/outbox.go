package channel

import (
	"encoding/json"
	"errors"
	"sync"
)

// Outbox wraps a Channel with at-least-once delivery for fire-and-forget
// sends. A payload rejected with ErrNotConnected is queued and flushed when
// the channel reconnects, so a score delta computed during an outage is not
// silently dropped. The queue is bounded; on overflow the oldest entry is
// evicted and an "error" event is emitted so the loss is observable.
// Receivers dedup by (studentId, questionId), which makes the redelivery safe.
type Outbox struct {
	ch    Channel
	limit int

	mu      sync.Mutex
	pending []outboxItem
	off     func()
}

type outboxItem struct {
	event   string
	payload json.RawMessage
}

const defaultOutboxLimit = 256

func NewOutbox(ch Channel, limit int) *Outbox {
	if limit <= 0 {
		limit = defaultOutboxLimit
	}
	o := &Outbox{ch: ch, limit: limit}
	o.off = ch.On(EventConnected, func(json.RawMessage) { o.Flush() })
	return o
}

// Send forwards to the underlying channel, queueing on ErrNotConnected.
// A queued payload reports nil: the caller's obligation ends once the delta
// is durably staged.
func (o *Outbox) Send(event string, payload any) error {
	err := o.ch.Send(event, payload)
	if !errors.Is(err, ErrNotConnected) {
		return err
	}

	raw, merr := json.Marshal(payload)
	if merr != nil {
		return merr
	}

	o.mu.Lock()
	if len(o.pending) >= o.limit {
		o.pending = o.pending[1:]
		defer o.emitOverflow()
	}
	o.pending = append(o.pending, outboxItem{event: event, payload: raw})
	o.mu.Unlock()
	return nil
}

// Flush resends queued payloads in order. Anything that fails again stays at
// the head of the queue for the next reconnect.
func (o *Outbox) Flush() {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	for i, item := range pending {
		if err := o.ch.Send(item.event, item.payload); err != nil {
			o.mu.Lock()
			requeued := make([]outboxItem, 0, len(pending)-i+len(o.pending))
			requeued = append(requeued, pending[i:]...)
			requeued = append(requeued, o.pending...)
			o.pending = requeued
			o.mu.Unlock()
			return
		}
	}
}

// Pending reports the number of queued payloads.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Release detaches the outbox from the channel's reconnect events.
func (o *Outbox) Release() {
	o.off()
}

func (o *Outbox) emitOverflow() {
	if em, ok := o.ch.(interface {
		emit(string, json.RawMessage)
	}); ok {
		em.emit(EventError, json.RawMessage(`{"message":"outbox full, oldest delta dropped"}`))
	}
}
