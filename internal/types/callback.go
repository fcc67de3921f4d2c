package types

import (
	"iter"
	"slices"
	"sync"
)

// CallbackManager keeps an ordered set of registered callbacks.
// The zero value is ready to use.
type CallbackManager[T any] struct {
	mu     sync.RWMutex
	cbs    []callback[T]
	nextID int
}

type callback[T any] struct {
	id int
	cb T
}

func (m *CallbackManager[T]) Len() int {
	if m == nil {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cbs)
}

// Add registers the callback at the end of the order.
// Calling the returned remove function more than once is safe.
func (m *CallbackManager[T]) Add(cb T) (remove func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.cbs = append(m.cbs, callback[T]{id, cb})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.cbs = slices.DeleteFunc(m.cbs, func(c callback[T]) bool {
				return c.id == id
			})
			m.mu.Unlock()
		})
	}
}

// All returns an iterator over a snapshot of the registered callbacks in
// registration order. Registrations and removals during the iteration
// don't affect it.
func (m *CallbackManager[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if m == nil {
			return
		}

		m.mu.RLock()
		cbs := make([]T, len(m.cbs))
		for i, c := range m.cbs {
			cbs[i] = c.cb
		}
		m.mu.RUnlock()

		for _, cb := range cbs {
			if !yield(cb) {
				return
			}
		}
	}
}
