// Package state holds the observable application state of one workspace
// session.
package state

import "sync"

// Cell is a single observable value. Set stores the value and then notifies
// every subscriber, in subscription order, before returning.
type Cell[T any] struct {
	mu     sync.Mutex
	value  T
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and notifies subscribers. Subscribers run outside
// the cell's lock and may read or write other cells.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update applies fn to the current value, stores the result and notifies
// subscribers. fn runs under the lock and must not touch the cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	v := fn(c.value)
	c.value = v
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
	return v
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}
