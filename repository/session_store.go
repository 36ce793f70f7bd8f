package repository

import (
	"sync"

	"aptchat/logging"
)

// MemoryStore is an in-memory keyed store guarded by a RWMutex. Live onboarding sessions
// are kept here; nothing survives a restart.
type MemoryStore[T any] struct {
	items map[string]T
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{items: make(map[string]T)}
}

// Put saves value under id, replacing any previous value.
func (s *MemoryStore[T]) Put(id string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = value
	logging.L().Debugf("[MemoryStore] Stored '%s' (%d items).", id, len(s.items))
}

// Get returns the value stored under id.
func (s *MemoryStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[id]
	return value, ok
}

// Delete removes and returns the value stored under id.
func (s *MemoryStore[T]) Delete(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	return value, ok
}

// DeleteFunc removes every value for which match returns true and returns them.
func (s *MemoryStore[T]) DeleteFunc(match func(id string, value T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []T
	for id, value := range s.items {
		if match(id, value) {
			removed = append(removed, value)
			delete(s.items, id)
		}
	}
	return removed
}

// Len returns the number of stored values.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
