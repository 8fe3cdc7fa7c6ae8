package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Picker is an inline list for answering a host pick request.
type Picker struct {
	title     string
	items     []string
	cursor    int
	selected  string
	done      bool
	cancelled bool
	box       lipgloss.Style
}

// NewPicker creates a Picker over items. The width controls the box width.
func NewPicker(title string, items []string, width int) *Picker {
	boxWidth := width - 4
	if boxWidth < 20 {
		boxWidth = 20
	}
	return &Picker{
		title: title,
		items: items,
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CC8800", Dark: "#FFAA00"}).
			Width(boxWidth).
			Padding(0, 1),
	}
}

// Selected returns the chosen item, or "" if none.
func (p *Picker) Selected() string { return p.selected }

// Done reports whether the user chose or cancelled.
func (p *Picker) Done() bool { return p.done || p.cancelled }

// Cancelled reports whether the user dismissed the pick.
func (p *Picker) Cancelled() bool { return p.cancelled }

// HandleKey moves the cursor or ends the pick. It reports whether the pick
// is over.
func (p *Picker) HandleKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp:
		if p.cursor > 0 {
			p.cursor--
		}
	case tea.KeyDown:
		if p.cursor < len(p.items)-1 {
			p.cursor++
		}
	case tea.KeyEnter:
		if len(p.items) == 0 {
			p.cancelled = true
			return true
		}
		p.selected = p.items[p.cursor]
		p.done = true
		return true
	case tea.KeyEsc:
		p.cancelled = true
		return true
	default:
		switch msg.String() {
		case "k":
			return p.HandleKey(tea.KeyMsg{Type: tea.KeyUp})
		case "j":
			return p.HandleKey(tea.KeyMsg{Type: tea.KeyDown})
		}
	}
	return false
}

// View renders the items with a cursor indicator.
func (p *Picker) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(p.title))
	b.WriteString("\n")
	for i, item := range p.items {
		cursor := "  "
		if i == p.cursor {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%s\n", cursor, item))
	}
	b.WriteString(helpStyle.Render("↑/↓ move · enter select · esc cancel"))
	return p.box.Render(b.String()) + "\n"
}
