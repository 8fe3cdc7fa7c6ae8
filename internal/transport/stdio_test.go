package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianshen/aksmigrate/internal/broadcast"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) frames(t *testing.T) []Frame {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Frame
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var f Frame
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f))
		out = append(out, f)
	}
	return out
}

func TestServe_PassesLinesInOrder(t *testing.T) {
	in := strings.NewReader("{\"type\":\"A\"}\n\n{\"type\":\"B\"}\n")
	c := New(in, io.Discard, zerolog.Nop())

	var got []string
	err := c.Serve(context.Background(), func(_ context.Context, raw []byte) {
		got = append(got, string(raw))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"A"}`, `{"type":"B"}`}, got)
}

func TestServe_StopsOnContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := New(pr, io.Discard, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Serve(ctx, func(context.Context, []byte) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServe_SkipsOversizedLine(t *testing.T) {
	huge := `{"type":"SOLUTION","payload":"` + strings.Repeat("x", maxLine) + `"}`
	in := strings.NewReader(huge + "\n" + `{"type":"WIZARD_NEXT_STEP"}` + "\r\n")
	var logs bytes.Buffer
	c := New(in, io.Discard, zerolog.New(&logs))

	var got []string
	err := c.Serve(context.Background(), func(_ context.Context, raw []byte) {
		got = append(got, string(raw))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"WIZARD_NEXT_STEP"}`}, got)
	assert.Contains(t, logs.String(), "dropping oversized action")
}

func TestServe_AcceptsLineAtLimit(t *testing.T) {
	line := strings.Repeat("y", maxLine)
	c := New(strings.NewReader(line+"\n"), io.Discard, zerolog.Nop())

	var n int
	require.NoError(t, c.Serve(context.Background(), func(_ context.Context, raw []byte) {
		n = len(raw)
	}))
	assert.Equal(t, maxLine, n)
}

func TestRead_ExitsAfterClose(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pr.Close() })
	c := New(pr, io.Discard, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Serve(ctx, func(context.Context, []byte) {}), context.Canceled)

	// Nobody consumes lines any more; the reader must still give up.
	go func() {
		for {
			if _, err := io.WriteString(pw, "{\"type\":\"A\"}\n"); err != nil {
				return
			}
		}
	}()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-c.lineCh:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPostAndNotifications(t *testing.T) {
	out := &syncBuffer{}
	c := New(strings.NewReader(""), out, zerolog.Nop())

	require.NoError(t, c.Post(broadcast.Message{Seq: 3, Data: json.RawMessage(`{"activeProfileId":"p1"}`)}))
	c.ShowError("bad")
	c.ShowWarning("careful")
	c.ShowInfo("done")

	frames := out.frames(t)
	require.Len(t, frames, 4)
	assert.Equal(t, FrameState, frames[0].Type)
	assert.Equal(t, uint64(3), frames[0].Seq)
	assert.JSONEq(t, `{"activeProfileId":"p1"}`, string(frames[0].Data))
	assert.Equal(t, Frame{Type: FrameNotification, Level: LevelError, Message: "bad"}, frames[1])
	assert.Equal(t, LevelWarning, frames[2].Level)
	assert.Equal(t, LevelInfo, frames[3].Level)
}

func TestPick_RoundTrip(t *testing.T) {
	out := &syncBuffer{}
	c := New(strings.NewReader(""), out, zerolog.Nop())

	type result struct {
		value string
		ok    bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, ok, err := c.Pick(context.Background(), "Pick one", []string{"a", "b"})
		done <- result{v, ok, err}
	}()

	var req Frame
	require.Eventually(t, func() bool {
		frames := out.frames(t)
		if len(frames) == 0 {
			return false
		}
		req = frames[0]
		return true
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, FramePickRequest, req.Type)
	assert.Equal(t, []string{"a", "b"}, req.Items)

	assert.False(t, c.ResolvePick("other", "a", false))
	assert.True(t, c.ResolvePick(req.ID, "b", false))
	r := <-done
	require.NoError(t, r.err)
	assert.True(t, r.ok)
	assert.Equal(t, "b", r.value)
	assert.False(t, c.ResolvePick(req.ID, "b", false))
}

func TestPick_CancelledAndClosed(t *testing.T) {
	out := &syncBuffer{}
	c := New(strings.NewReader(""), out, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, ok, err := c.Pick(context.Background(), "t", []string{"x"})
		assert.False(t, ok)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(out.frames(t)) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, c.ResolvePick(out.frames(t)[0].ID, "", true))
	assert.NoError(t, <-done)

	go func() {
		_, _, err := c.Pick(context.Background(), "t", []string{"x"})
		done <- err
	}()
	require.Eventually(t, func() bool { return len(out.frames(t)) == 2 }, time.Second, 5*time.Millisecond)
	c.Close()
	assert.ErrorIs(t, <-done, ErrClosed)

	_, _, err := c.Pick(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrClosed)
}
