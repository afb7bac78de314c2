// Package desktop holds the client-side state of a generative desktop: open
// windows, the local app cache and the progress of the current generation.
// Every piece of state lives in a Store and changes only through Dispatch.
package desktop

import "sync"

type listener[S any] struct {
	id int
	fn func(S)
}

// Store is a state holder with get/subscribe/dispatch semantics. Reducers
// must treat the state they receive as immutable and return a new value.
type Store[S any] struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     S
	listeners []listener[S]
	nextID    int
}

func NewStore[S any](initial S) *Store[S] {
	return &Store[S]{state: initial}
}

// Get returns the current state
func (s *Store[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called with the new state after every
// dispatch. Listeners must not dispatch to the same store.
func (s *Store[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener[S]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch applies reduce to the current state and notifies listeners in
// subscription order. Dispatches are serialized, so listeners observe states
// in the order they were produced.
func (s *Store[S]) Dispatch(reduce func(S) S) S {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := reduce(s.state)
	s.state = next
	listeners := make([]listener[S], len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(next)
	}
	return next
}
