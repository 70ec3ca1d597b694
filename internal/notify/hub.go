// Package notify broadcasts the payload-free "data changed" signal that tells
// collaborators to re-fetch every collection after a bulk mutation.
package notify

import (
	"sync"
)

// Notifier is the publishing side of the hub.
type Notifier interface {
	Notify()
}

// Hub fans a signal out to every live subscription.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewHub creates a hub whose subscriptions buffer up to buffer pending
// signals; further signals for a full subscriber are dropped.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscription receives one value on C per signal.
type Subscription struct {
	C    <-chan struct{}
	ch   chan struct{}
	hub  *Hub
	once sync.Once
}

// Subscribe registers a new subscription. Callers must Close it.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan struct{}, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Notify delivers one signal to every subscriber without blocking.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
