// Package state holds the extension's single source of truth and the
// clone-on-write container every view subscribes to.
package state

import (
	"sync"

	"github.com/mitchellh/copystructure"
)

// Listener receives every committed snapshot. Snapshots passed to a
// listener are shared and must be treated as read-only. Listeners run
// inside the container's critical section and must not call Mutate.
type Listener func(*ExtensionData)

type subscription struct {
	id uint64
	fn Listener
}

// Container owns the current ExtensionData snapshot. Every mutation works
// on a deep copy and replaces the snapshot only after the recipe returns,
// so a snapshot handed out is never modified afterwards.
type Container struct {
	mu        sync.Mutex
	current   *ExtensionData
	listeners []subscription
	nextID    uint64
	closed    bool
}

// NewContainer returns a container holding initial.
func NewContainer(initial *ExtensionData) *Container {
	if initial == nil {
		initial = Default("")
	}
	return &Container{current: initial}
}

// State returns the current snapshot. The result must not be modified; use
// Mutate to change state.
func (c *Container) State() *ExtensionData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Mutate applies recipe to a working copy of the current snapshot, commits
// it, notifies subscribers in registration order and returns the new
// snapshot. A panic inside recipe leaves the previous snapshot current.
func (c *Container) Mutate(recipe func(draft *ExtensionData)) *ExtensionData {
	next, _ := c.TryMutate(func(draft *ExtensionData) error {
		recipe(draft)
		return nil
	})
	return next
}

// TryMutate is Mutate for recipes that can fail. When recipe returns an
// error nothing is committed, no subscriber is notified, and the current
// snapshot is returned together with the error.
func (c *Container) TryMutate(recipe func(draft *ExtensionData) error) (*ExtensionData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	draft := c.current.Clone()
	if err := recipe(draft); err != nil {
		return c.current, err
	}
	c.current = draft

	if !c.closed {
		for _, s := range c.listeners {
			s.fn(draft)
		}
	}
	return draft, nil
}

// Subscribe registers fn for future commits and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (c *Container) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(fn)
}

// Watch is Subscribe that first calls fn with the current snapshot. Both
// happen under the container lock, so fn sees every snapshot from the
// current one on without gaps or repeats.
func (c *Container) Watch(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.current)
	return c.add(fn)
}

// add registers fn. c.mu must be held.
func (c *Container) add(fn Listener) func() {
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered listeners.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Close drops every listener. Mutations after Close still commit but are
// not announced.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = nil
	c.closed = true
}

// Clone returns a deep copy of d.
func (d *ExtensionData) Clone() *ExtensionData {
	return copystructure.Must(copystructure.Copy(d)).(*ExtensionData)
}
