package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/julianshen/aksmigrate/internal/state"
)

// MarkdownRenderer wraps Glamour for rendering solution replies.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer with the dark style and the given
// word wrap width. The dark style is fixed because Bubble Tea owns the
// terminal and auto-detection would query it.
func NewMarkdownRenderer(width int) (*MarkdownRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating glamour renderer: %w", err)
	}
	return &MarkdownRenderer{renderer: r}, nil
}

// Render processes markdown text into styled terminal output.
func (m *MarkdownRenderer) Render(md string) (string, error) {
	if md == "" {
		return "", nil
	}
	if m == nil || m.renderer == nil {
		return md, nil
	}
	return m.renderer.Render(md)
}

// RenderChat renders the solution conversation. Messages that fail to
// render are shown raw.
func (m *MarkdownRenderer) RenderChat(msgs []state.ChatMessage) string {
	var b strings.Builder
	for _, msg := range msgs {
		if msg.Value == "" {
			continue
		}
		b.WriteString(chatKindStyle.Render(msg.Kind))
		b.WriteString("\n")
		out, err := m.Render(msg.Value)
		if err != nil || out == "" {
			out = msg.Value + "\n"
		}
		b.WriteString(out)
	}
	return b.String()
}
