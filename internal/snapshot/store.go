// Package snapshot holds the latest published system snapshot and pushes
// every new one to subscribers.
package snapshot

import (
	"sync"

	"agentwatch/internal/model"
)

// Store keeps the most recent snapshot. Readers always see a complete
// snapshot; a publish replaces it as a whole.
type Store struct {
	mu      sync.RWMutex
	current model.Snapshot
	ready   bool
	nextID  int
	subs    map[int]chan model.Snapshot
}

func NewStore() *Store {
	return &Store{subs: make(map[int]chan model.Snapshot)}
}

// Publish replaces the current snapshot and notifies subscribers. A slow
// subscriber never blocks the publisher: its pending snapshot is replaced by
// the newer one.
func (s *Store) Publish(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = snap
	s.ready = true
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the stale pending value, then deliver
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Current returns the latest snapshot and whether one has been published.
func (s *Store) Current() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.ready
}

// Subscribe returns a channel receiving every subsequently published
// snapshot (newest wins when the reader falls behind) and a cancel function
// that closes it.
func (s *Store) Subscribe() (<-chan model.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan model.Snapshot, 1)
	if s.ready {
		ch <- s.current
	}
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of active subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
