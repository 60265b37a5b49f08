// Package cache holds small in-process caches owned by the composition root.
package cache

import (
	"sync"
	"time"
)

// Slot caches a single value for a fixed TTL. The zero TTL disables caching.
type Slot[T any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	value T
	at    time.Time
	set   bool
}

// NewSlot creates an empty slot.
func NewSlot[T any](ttl time.Duration) *Slot[T] {
	return &Slot[T]{ttl: ttl, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (s *Slot[T]) WithClock(now func() time.Time) *Slot[T] {
	s.now = now
	return s
}

// Get returns the cached value when it is younger than the TTL.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if !s.set || s.ttl <= 0 {
		return zero, false
	}
	if s.now().Sub(s.at) >= s.ttl {
		return zero, false
	}
	return s.value, true
}

// Put stores v stamped with the current time.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.at = s.now()
	s.set = true
}

// Age reports how long ago the value was stored, and whether one is stored.
func (s *Slot[T]) Age() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return 0, false
	}
	return s.now().Sub(s.at), true
}

// Clear drops the cached value.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.set = false
}
