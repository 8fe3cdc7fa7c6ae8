// Package transport connects a view over a JSON-lines stream, usually the
// process's stdin and stdout. Each incoming line is one action; outgoing
// lines are state snapshots, notifications and pick requests.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/julianshen/aksmigrate/internal/broadcast"
	"github.com/rs/zerolog"
)

// Outgoing frame types.
const (
	FrameState        = "STATE"
	FrameNotification = "NOTIFICATION"
	FramePickRequest  = "PICK_REQUEST"
)

// Notification levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// maxLine bounds one incoming action. Solution requests carry incident
// lists and can be large.
const maxLine = 4 * 1024 * 1024

// ErrClosed is returned by Pick when the connection closes while the pick
// is waiting.
var ErrClosed = errors.New("transport closed")

// Frame is one outgoing line.
type Frame struct {
	Type string `json:"type"`

	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	ID    string   `json:"id,omitempty"`
	Title string   `json:"title,omitempty"`
	Items []string `json:"items,omitempty"`
}

type pickAnswer struct {
	value     string
	cancelled bool
}

// lineResult carries one line or a read error from the reader goroutine.
type lineResult struct {
	data []byte
	err  error
}

// Conn is a JSON-lines connection to one view. It implements
// broadcast.View for state and dispatch.Window for notifications and
// picks.
type Conn struct {
	w      io.Writer
	wmu    sync.Mutex
	lineCh chan lineResult
	done   chan struct{}
	log    zerolog.Logger

	pmu     sync.Mutex
	pending map[string]chan pickAnswer
	closed  bool
}

// New starts reading r in the background and writes frames to w.
func New(r io.Reader, w io.Writer, log zerolog.Logger) *Conn {
	c := &Conn{
		w:       w,
		lineCh:  make(chan lineResult, 16),
		done:    make(chan struct{}),
		log:     log,
		pending: map[string]chan pickAnswer{},
	}
	go c.read(r)
	return c
}

// read splits r into lines. Lines longer than maxLine are dropped with a
// warning and reading continues with the next line. It stops at end of
// input, on a read error, or once the connection is closed.
func (c *Conn) read(r io.Reader) {
	defer close(c.lineCh)
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		line    []byte
		dropped int
	)
	for {
		chunk, err := br.ReadSlice('\n')
		switch {
		case dropped > 0:
			dropped += len(chunk)
		case len(line)+len(chunk) > maxLine+1:
			dropped = len(line) + len(chunk)
			line = nil
		default:
			line = append(line, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			c.deliver(lineResult{err: err})
			return
		}

		if dropped > 0 {
			c.log.Warn().Int("bytes", dropped).Int("limit", maxLine).Msg("dropping oversized action")
		} else if data := trimEOL(line); len(data) > 0 {
			if !c.deliver(lineResult{data: data}) {
				return
			}
		}
		line, dropped = nil, 0
		if err != nil {
			return
		}
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// deliver hands lr to Serve. It reports false once the connection is
// closed.
func (c *Conn) deliver(lr lineResult) bool {
	select {
	case c.lineCh <- lr:
		return true
	case <-c.done:
		return false
	}
}

// Serve passes each incoming line to handle until the input ends, ctx is
// done or reading fails. Blank lines are skipped. End of input returns nil.
func (c *Conn) Serve(ctx context.Context, handle func(ctx context.Context, raw []byte)) error {
	defer c.Close()
	for {
		select {
		case lr, ok := <-c.lineCh:
			if !ok {
				return nil
			}
			if lr.err != nil {
				return fmt.Errorf("read action: %w", lr.err)
			}
			if len(lr.data) == 0 {
				continue
			}
			handle(ctx, lr.data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send writes f as one line.
func (c *Conn) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	data = append(data, '\n')

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Post sends a state snapshot.
func (c *Conn) Post(msg broadcast.Message) error {
	return c.Send(Frame{Type: FrameState, Seq: msg.Seq, Data: msg.Data})
}

func (c *Conn) notify(level, msg string) {
	if err := c.Send(Frame{Type: FrameNotification, Level: level, Message: msg}); err != nil {
		c.log.Warn().Err(err).Str("level", level).Str("message", msg).Msg("sending notification")
	}
}

// ShowError sends an error notification.
func (c *Conn) ShowError(msg string) { c.notify(LevelError, msg) }

// ShowWarning sends a warning notification.
func (c *Conn) ShowWarning(msg string) { c.notify(LevelWarning, msg) }

// ShowInfo sends an informational notification.
func (c *Conn) ShowInfo(msg string) { c.notify(LevelInfo, msg) }

// Pick sends a pick request and waits for the matching PICK_RESPONSE.
func (c *Conn) Pick(ctx context.Context, title string, items []string) (string, bool, error) {
	id := uuid.NewString()
	ch := make(chan pickAnswer, 1)

	c.pmu.Lock()
	if c.closed {
		c.pmu.Unlock()
		return "", false, ErrClosed
	}
	c.pending[id] = ch
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		delete(c.pending, id)
		c.pmu.Unlock()
	}()

	if err := c.Send(Frame{Type: FramePickRequest, ID: id, Title: title, Items: items}); err != nil {
		return "", false, err
	}

	select {
	case ans, ok := <-ch:
		if !ok {
			return "", false, ErrClosed
		}
		return ans.value, !ans.cancelled, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// ResolvePick delivers the answer to the pick waiting under id. It reports
// false when no such pick is pending.
func (c *Conn) ResolvePick(id, value string, cancelled bool) bool {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	ch, ok := c.pending[id]
	if !ok {
		return false
	}
	delete(c.pending, id)
	ch <- pickAnswer{value: value, cancelled: cancelled}
	return true
}

// Close fails every waiting pick and stops the reader goroutine. It does
// not close the underlying reader or writer.
func (c *Conn) Close() {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
