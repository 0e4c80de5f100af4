package state

import (
	"errors"
	"sort"
	"sync"
)

// ErrDisposed is returned by Dispatch after Close.
var ErrDisposed = errors.New("state store disposed")

// Listener observes applied intents.
type Listener func(prev, cur Snapshot)

// Store owns the single live Snapshot. Intents are applied one at a time and
// listeners see changes in commit order. A change committed while another
// goroutine (or an enclosing listener) is delivering is queued and delivered
// by that goroutine.
type Store struct {
	mu         sync.Mutex
	current    Snapshot
	listeners  map[uint64]Listener
	nextID     uint64
	closed     bool
	queue      []change
	delivering bool
}

type change struct {
	prev, cur Snapshot
	listeners []Listener
}

// NewStore creates a Store holding Initial().
func NewStore() *Store {
	return &Store{
		current:   Initial(),
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispatch applies intent. On error or no-op the current snapshot is returned
// and no listener runs. When no other delivery is in progress, listeners
// have run by the time Dispatch returns.
func (s *Store) Dispatch(intent Intent) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrDisposed
	}
	prev := s.current
	next, changed, err := Reduce(prev, intent)
	if err != nil || !changed {
		s.mu.Unlock()
		return prev, err
	}
	s.current = next
	s.queue = append(s.queue, change{prev: prev, cur: next, listeners: s.orderedListeners()})
	if s.delivering {
		s.mu.Unlock()
		return next, nil
	}
	s.delivering = true
	s.mu.Unlock()

	s.deliver()
	return next, nil
}

func (s *Store) deliver() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue[0] = change{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		for _, l := range c.listeners {
			l(c.prev, c.cur)
		}
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Close rejects further intents and drops every listener. It is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.listeners)
}

func (s *Store) orderedListeners() []Listener {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}
