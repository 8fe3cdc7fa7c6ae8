package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianshen/aksmigrate/internal/state"
)

// StatusBar displays the analyzer state, active profile, incident counts and
// the solution state.
type StatusBar struct {
	width      int
	server     state.ServerState
	profile    string
	incidents  int
	unresolved int
	solution   state.SolutionState
	pending    int
	style      lipgloss.Style
}

// NewStatusBar creates a StatusBar with the given terminal width.
func NewStatusBar(width int) *StatusBar {
	return &StatusBar{
		width: width,
		style: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}),
	}
}

// SetWidth sets the width the bar is truncated to.
func (s *StatusBar) SetWidth(w int) { s.width = w }

// Update copies the displayed fields from d.
func (s *StatusBar) Update(d *state.ExtensionData) {
	s.server = d.ServerState
	s.profile = ""
	if p, ok := d.ActiveProfile(); ok {
		s.profile = p.Name
	}
	s.incidents = len(d.EnhancedIncidents)
	s.unresolved = d.UnresolvedIncidents()
	s.solution = d.SolutionState
	s.pending = 0
	for _, c := range d.LocalChanges {
		if c.State == state.ChangePending {
			s.pending++
		}
	}
}

// View renders the status bar as a styled string.
func (s *StatusBar) View() string {
	profile := s.profile
	if profile == "" {
		profile = "no profile"
	}
	server := s.server
	if server == "" {
		server = state.ServerInitial
	}
	line := fmt.Sprintf(" analyzer:%s  profile:%s  incidents:%d/%d  solution:%s  pending:%d",
		server, profile, s.unresolved, s.incidents, s.solution, s.pending)
	if s.width > 0 {
		return s.style.MaxWidth(s.width).Render(line)
	}
	return s.style.Render(line)
}
