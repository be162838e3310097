// Package store holds the process-wide dispatcher and the reducers of every state slice.
// A Store is built once at startup and handed to each orchestrator; nothing else writes
// state.
package store

import (
	"sync"
)

// Listener observes a committed action together with the snapshot it produced.
type Listener func(state State, action Action)

type subscription struct {
	id uint64
	fn Listener
}

type Store struct {
	// dispatchMu serializes reduce+notify so listeners see actions in commit order.
	dispatchMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	subMu  sync.Mutex
	nextID uint64
	subs   []subscription
}

func New(initial State) *Store {
	return &Store{state: initial}
}

func (s *Store) GetState() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Dispatch applies action and then notifies every listener once, in subscription order.
// Actions rejected by their reducer leave the state unchanged but are still delivered.
// Listeners run inside the dispatch critical section and must not call Dispatch
// synchronously.
func (s *Store) Dispatch(action Action) {
	if action == nil {
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.stateMu.Lock()
	next := reduce(s.state, action)
	s.state = next
	s.stateMu.Unlock()

	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(next, action)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}
