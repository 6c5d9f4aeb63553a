// Package session keeps the most recent upload results in memory so that
// their maps can be fetched after the upload request returns.
package session

import "sync"

// DefaultCapacity keeps only the latest upload, matching a single-user
// upload-then-view workflow.
const DefaultCapacity = 1

// Store is a thread-safe LRU keyed by upload ID.
type Store[V any] struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*entry[V]
	head     *entry[V] // most recently used
	tail     *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

// NewStore creates a store holding at most capacity results. Values below 1
// fall back to DefaultCapacity.
func NewStore[V any](capacity int) *Store[V] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store[V]{
		capacity: capacity,
		entries:  make(map[string]*entry[V]),
	}
}

// Get returns the value stored under id and marks it most recently used.
func (s *Store[V]) Get(id string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		var zero V
		return zero, false
	}
	s.moveToFront(e)
	return e.value, true
}

// Put stores value under id, evicting the least recently used entry when the
// store is full.
func (s *Store[V]) Put(id string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.value = value
		s.moveToFront(e)
		return
	}

	e := &entry[V]{key: id, value: value}
	s.entries[id] = e
	s.addToFront(e)

	if len(s.entries) > s.capacity {
		s.evictTail()
	}
}

// Len reports the number of stored entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[V]) moveToFront(e *entry[V]) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

func (s *Store[V]) addToFront(e *entry[V]) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *Store[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
}

func (s *Store[V]) evictTail() {
	if s.tail == nil {
		return
	}
	delete(s.entries, s.tail.key)
	s.remove(s.tail)
}
