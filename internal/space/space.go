// Package space implements a shared tuple-space style buffer: non-blocking
// insertion plus predicate-matched, timeout-bounded removal. The task and
// result spaces are the only objects touched by more than one component;
// everything else communicates through them.
package space

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	item     T
	priority int
	seq      uint64
}

// Space is an unbounded buffer ordered by (priority desc, insertion order).
// Put never blocks; Take suspends until a matching item arrives, the timeout
// elapses, the context is cancelled, or the space is closed.
type Space[T any] struct {
	name string

	mu     sync.Mutex
	items  []entry[T]
	seq    uint64
	wake   chan struct{}
	closed bool
}

// New creates an empty space. The name is used only for logging and metrics.
func New[T any](name string) *Space[T] {
	return &Space[T]{name: name, wake: make(chan struct{})}
}

// Name returns the space's name.
func (s *Space[T]) Name() string { return s.name }

// Put inserts an item. Higher priority is serviced first; equal priorities
// keep insertion order.
func (s *Space[T]) Put(item T, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	e := entry[T]{item: item, priority: priority, seq: s.seq}
	// Insert before the first entry with strictly lower priority.
	pos := len(s.items)
	for i := range s.items {
		if s.items[i].priority < priority {
			pos = i
			break
		}
	}
	s.items = append(s.items, entry[T]{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = e
	// Wake every waiter; each re-checks under the lock.
	close(s.wake)
	s.wake = make(chan struct{})
}

// Take removes and returns the first item matching pred. It waits up to
// timeout for a match and returns (zero, false) if none arrived, the context
// was cancelled, or the space was closed while empty of matches.
func (s *Space[T]) Take(ctx context.Context, timeout time.Duration, pred func(T) bool) (T, bool) {
	var zero T
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		for i := range s.items {
			if pred(s.items[i].item) {
				item := s.items[i].item
				s.items = append(s.items[:i], s.items[i+1:]...)
				s.mu.Unlock()
				return item, true
			}
		}
		if s.closed {
			s.mu.Unlock()
			return zero, false
		}
		wake := s.wake
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wake:
			timer.Stop()
		case <-timer.C:
			return zero, false
		case <-ctx.Done():
			timer.Stop()
			return zero, false
		}
	}
}

// Len returns the number of buffered items.
func (s *Space[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close marks the space closed and releases all waiters. Further Puts are
// dropped; Takes still drain matching items already buffered.
func (s *Space[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.wake)
	s.wake = make(chan struct{})
}

// Any matches every item; the usual predicate for single-consumer spaces.
func Any[T any](T) bool { return true }
