// Package realtime tells interested observers that a subject's allocations or
// bookings changed. Delivery is best effort: observers must re-read the ledger
// rather than trust the notification payload.
package realtime

import (
	"context"
	"log"
	"sync"
	"time"
)

type ChangeKind string

const (
	ChangeAllocation ChangeKind = "allocation_changed"
	ChangeBooking    ChangeKind = "booking_changed"
)

type Change struct {
	SubjectID string     `json:"subject_id"`
	Kind      ChangeKind `json:"kind"`
	BookingID string     `json:"booking_id,omitempty"`
	At        time.Time  `json:"at"`
}

// Publisher announces a change. Implementations must not block on slow observers.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Hub is the in-process subscription registry.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func(Change)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]func(Change))}
}

type Subscription struct {
	hub       *Hub
	subjectID string
	id        uint64
	once      sync.Once
}

// Subscribe registers onChange for subjectID. onChange runs on the
// dispatching goroutine and must return quickly.
func (h *Hub) Subscribe(subjectID string, onChange func(Change)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.subs[subjectID] == nil {
		h.subs[subjectID] = make(map[uint64]func(Change))
	}
	h.subs[subjectID][id] = onChange
	return &Subscription{hub: h, subjectID: subjectID, id: id}
}

// Unsubscribe releases the subscription. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		subs := s.hub.subs[s.subjectID]
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.subs, s.subjectID)
		}
	})
}

// Publish lets the Hub act as the Publisher when no broker is configured.
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.Dispatch(change)
	return nil
}

// Dispatch delivers change to the subject's local subscribers.
func (h *Hub) Dispatch(change Change) {
	h.mu.RLock()
	callbacks := make([]func(Change), 0, len(h.subs[change.SubjectID]))
	for _, fn := range h.subs[change.SubjectID] {
		callbacks = append(callbacks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range callbacks {
		deliver(fn, change)
	}
}

func (h *Hub) Subscribers(subjectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[subjectID])
}

func deliver(fn func(Change), change Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Realtime] subscriber for %s panicked: %v", change.SubjectID, r)
		}
	}()
	fn(change)
}
