package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianshen/aksmigrate/internal/broadcast"
	"github.com/julianshen/aksmigrate/internal/state"
)

// snapshotMsg delivers a committed state snapshot to the Update loop.
type snapshotMsg struct {
	seq  uint64
	data *state.ExtensionData
}

// Notice levels.
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// noticeMsg is a notification from the host.
type noticeMsg struct {
	level string
	text  string
}

// pickResult is the answer to a pick request.
type pickResult struct {
	value string
	ok    bool
}

// pickRequestMsg asks the user to choose one of items. The host blocks on
// response until the user decides.
type pickRequestMsg struct {
	title    string
	items    []string
	response chan pickResult
}

// wizardClosedMsg is sent when the host finishes the wizard.
type wizardClosedMsg struct{}

// Bridge connects the host to a running Bubble Tea program. It is a
// broadcast.View for snapshots and a dispatch.Window for notifications and
// picks. Messages sent before Attach are queued.
type Bridge struct {
	mu      sync.Mutex
	prog    *tea.Program
	pending []tea.Msg
}

var _ broadcast.View = (*Bridge)(nil)

// NewBridge creates an unattached Bridge.
func NewBridge() *Bridge { return &Bridge{} }

// Attach starts delivering to p, flushing queued messages first.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.prog = p
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(queued) > 0 {
		// Snapshots carry their sequence, so the model drops stale ones if
		// newer messages overtake the flush.
		go func() {
			for _, msg := range queued {
				p.Send(msg)
			}
		}()
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.prog
	if p == nil {
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	p.Send(msg)
}

func (b *Bridge) attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prog != nil
}

// Post implements broadcast.View.
func (b *Bridge) Post(msg broadcast.Message) error {
	b.send(snapshotMsg{seq: msg.Seq, data: msg.Snapshot})
	return nil
}

// ShowError implements dispatch.Window.
func (b *Bridge) ShowError(msg string) { b.send(noticeMsg{level: NoticeError, text: msg}) }

// ShowWarning implements dispatch.Window.
func (b *Bridge) ShowWarning(msg string) { b.send(noticeMsg{level: NoticeWarning, text: msg}) }

// ShowInfo implements dispatch.Window.
func (b *Bridge) ShowInfo(msg string) { b.send(noticeMsg{level: NoticeInfo, text: msg}) }

// Pick implements dispatch.Window. Without an attached program the pick is
// dismissed.
func (b *Bridge) Pick(ctx context.Context, title string, items []string) (string, bool, error) {
	if !b.attached() || len(items) == 0 {
		return "", false, nil
	}
	resp := make(chan pickResult, 1)
	b.send(pickRequestMsg{title: title, items: items, response: resp})
	select {
	case r := <-resp:
		return r.value, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// CloseWizard is the host command handler that ends the program once the
// wizard is finished.
func (b *Bridge) CloseWizard(context.Context, ...any) error {
	b.send(wizardClosedMsg{})
	return nil
}
