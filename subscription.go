package livelist

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is the one listener a coordinator registers with its source.
// It forwards change signals to the coordinator's reconciliation entry point
// and is detached when the source is replaced or the coordinator is closed.
type Subscription struct {
	id          uuid.UUID
	coordinator *Coordinator

	mu     sync.Mutex
	source Source
}

func newSubscription(c *Coordinator) *Subscription {
	return &Subscription{
		id:          uuid.New(),
		coordinator: c,
	}
}

// ID returns the unique id of the subscription.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Source returns the source the subscription is attached to, or nil.
func (s *Subscription) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// OnChange implements Listener.
func (s *Subscription) OnChange() error {
	return s.coordinator.reconcile("signal")
}

// attach moves the subscription to src, detaching it from its previous
// source first. Attaching to the current source is a no-op.
func (s *Subscription) attach(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == src {
		return
	}
	s.detachLocked()
	if src != nil {
		src.AddListener(s)
		s.source = src
		s.coordinator.subscriptionAttached(s)
	}
}

func (s *Subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Subscription) detachLocked() {
	if s.source == nil {
		return
	}
	s.source.RemoveListener(s)
	s.source = nil
	s.coordinator.subscriptionDetached(s)
}
