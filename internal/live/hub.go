package live

import (
	"sync"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

// Status is the connection state of a live session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Unsubscribe removes a previously registered callback. Calling it more than
// once, or after the session is torn down, is a no-op.
type Unsubscribe func()

type subscriber[T any] struct {
	id int
	fn func(T)
}

// registry is an ordered list of callbacks for one signal kind. Delivery is
// synchronous and in registration order. Dispatch works on a snapshot, so
// unsubscribing mid-dispatch never affects the pass already in flight.
type registry[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[T]
}

func (r *registry[T]) subscribe(fn func(T)) Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *registry[T]) publish(v T) {
	r.mu.Lock()
	snapshot := make([]subscriber[T], len(r.subs))
	copy(snapshot, r.subs)
	r.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Hub fans out the three kinds of session signals to subscribers. The three
// streams are independent: ordering is only guaranteed within a kind.
type Hub struct {
	statuses registry[Status]
	texts    registry[string]
	reports  registry[*domain.Report]
}

// NewHub creates an empty subscriber hub.
func NewHub() *Hub {
	return &Hub{}
}

// OnStatus registers a callback for connection status transitions.
func (h *Hub) OnStatus(fn func(Status)) Unsubscribe {
	return h.statuses.subscribe(fn)
}

// OnText registers a callback for raw incremental text fragments.
func (h *Hub) OnText(fn func(string)) Unsubscribe {
	return h.texts.subscribe(fn)
}

// OnReport registers a callback for parsed defect reports.
func (h *Hub) OnReport(fn func(*domain.Report)) Unsubscribe {
	return h.reports.subscribe(fn)
}

func (h *Hub) publishStatus(s Status)        { h.statuses.publish(s) }
func (h *Hub) publishText(t string)          { h.texts.publish(t) }
func (h *Hub) publishReport(r *domain.Report) { h.reports.publish(r) }
