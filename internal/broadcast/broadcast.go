// Package broadcast pushes every committed state snapshot to the registered
// views. Each snapshot is serialized once and delivered to every view in
// commit order; a view replaces its local state with each message.
package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// ErrDuplicateView is returned by Register for an id already in use.
var ErrDuplicateView = errors.New("view already registered")

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("broadcast hub closed")

// Message is one snapshot as delivered to a view.
type Message struct {
	// Seq increases by one per commit.
	Seq uint64
	// Data is the JSON encoding of Snapshot.
	Data json.RawMessage
	// Snapshot is shared between views and must not be modified.
	Snapshot *state.ExtensionData
}

// View receives snapshots. Post is called from a goroutine owned by the
// hub, one message at a time.
type View interface {
	Post(msg Message) error
}

// ViewFunc adapts a function to View.
type ViewFunc func(Message) error

// Post calls f.
func (f ViewFunc) Post(msg Message) error { return f(msg) }

// Hub fans snapshots out to views.
type Hub struct {
	log zerolog.Logger

	mu     sync.Mutex
	seq    uint64
	last   Message
	views  map[string]*outbox
	closed bool
	unsub  func()
	wg     conc.WaitGroup
}

// New creates a hub that follows c.
func New(c *state.Container, log zerolog.Logger) *Hub {
	h := &Hub{log: log, views: map[string]*outbox{}}
	h.unsub = c.Watch(h.commit)
	return h
}

// commit runs inside the container's critical section, so calls are
// serialized in commit order.
func (h *Hub) commit(snap *state.ExtensionData) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding state snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.last = Message{Seq: h.seq, Data: data, Snapshot: snap}
	for _, o := range h.views {
		o.push(h.last)
	}
}

// Register adds v under id. v first receives the current snapshot, then
// every later one.
func (h *Hub) Register(id string, v View) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if _, ok := h.views[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateView, id)
	}

	o := newOutbox()
	h.views[id] = o
	h.wg.Go(func() { h.deliver(id, v, o) })
	o.push(h.last)
	h.log.Debug().Str("view", id).Msg("view registered")
	return nil
}

// Unregister removes the view registered under id after it has received
// what was already queued for it.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	o, ok := h.views[id]
	delete(h.views, id)
	h.mu.Unlock()
	if ok {
		o.close()
	}
}

// Views returns the registered view ids.
func (h *Hub) Views() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.views))
	for id := range h.views {
		ids = append(ids, id)
	}
	return ids
}

// Last returns the most recent message.
func (h *Hub) Last() Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Close stops following the container, drains every view and waits for
// the delivery goroutines.
func (h *Hub) Close() {
	h.unsub()

	h.mu.Lock()
	h.closed = true
	views := h.views
	h.views = map[string]*outbox{}
	h.mu.Unlock()

	for _, o := range views {
		o.close()
	}
	h.wg.Wait()
}

func (h *Hub) deliver(id string, v View, o *outbox) {
	for {
		msg, ok := o.pop()
		if !ok {
			return
		}
		if err := v.Post(msg); err != nil {
			h.log.Warn().Err(err).Str("view", id).Uint64("seq", msg.Seq).Msg("posting state to view")
		}
	}
}

// outbox is an unbounded FIFO so a slow view never blocks a commit.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Message
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.queue = append(o.queue, m)
	o.cond.Signal()
}

// pop blocks until a message is queued. It reports false once the outbox
// is closed and drained.
func (o *outbox) pop() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return Message{}, false
	}
	m := o.queue[0]
	o.queue[0] = Message{}
	o.queue = o.queue[1:]
	return m, true
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Broadcast()
}
