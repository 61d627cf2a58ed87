// Package history keeps a bounded, drop-oldest window of recent values.
package history

import "sync"

// DefaultSize is the number of snapshots kept for realtime charts.
const DefaultSize = 60

// Ring is a fixed-capacity buffer ordered oldest to newest.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	start int
	size  int
}

// New creates a ring holding at most capacity items.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultSize
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest item when full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.size) % len(r.items)
	r.items[idx] = v
	if r.size < len(r.items) {
		r.size++
	} else {
		r.start = (r.start + 1) % len(r.items)
	}
}

// Items returns the retained values, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Last returns the newest value.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[(r.start+r.size-1)%len(r.items)], true
}

// Len returns the number of retained values.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }
