package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/wizard"
)

// Sender handles the actions the view produces.
type Sender interface {
	Handle(ctx context.Context, a dispatch.Action) error
}

// Options configure NewModel.
type Options struct {
	AppName string
	// Steps must match the host's wizard sequence. Nil means the six-step
	// wizard.
	Steps []state.Step
	// Targets and Sources are offered by the new-profile form.
	Targets []string
	Sources []string
}

// maxNotices is how many host notifications stay on screen.
const maxNotices = 3

// Model is the Bubble Tea model of the migration wizard. It renders the
// latest snapshot and turns keys into actions; it never changes state
// itself.
type Model struct {
	send    Sender
	steps   wizard.Machine
	targets []string
	sources []string
	appName string

	snap *state.ExtensionData
	seq  uint64

	viewport  viewport.Model
	spinner   spinner.Model
	md        *MarkdownRenderer
	statusBar *StatusBar

	picker   *Picker
	pickResp chan pickResult
	overlay  *Overlay
	notices  []noticeMsg

	cursor       int
	focusChanges bool
	selected     map[string]bool

	width    int
	height   int
	quitting bool
	finished bool
}

// Ensure Model satisfies the tea.Model interface at compile time.
var _ tea.Model = (*Model)(nil)

// NewModel creates the wizard model. send may be nil in tests.
func NewModel(send Sender, opts Options) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	appName := opts.AppName
	if appName == "" {
		appName = "aksmigrate"
	}

	// The dark style is static, so creation is unlikely to fail; Render
	// falls back to raw text when the renderer is nil.
	md, _ := NewMarkdownRenderer(80)

	m := &Model{
		send:      send,
		steps:     wizard.New(opts.Steps),
		targets:   opts.Targets,
		sources:   opts.Sources,
		appName:   appName,
		viewport:  viewport.New(80, 16),
		spinner:   sp,
		md:        md,
		statusBar: NewStatusBar(80),
		selected:  map[string]bool{},
		width:     80,
		height:    24,
	}
	m.viewport.SetContent(RenderBanner() + "\n\nWaiting for the extension...")
	return m
}

// Finished reports whether the wizard was completed, as opposed to the
// user quitting.
func (m *Model) Finished() bool { return m.finished }

// Snapshot returns the last snapshot the model rendered.
func (m *Model) Snapshot() *state.ExtensionData { return m.snap }

// dispatch returns a command that hands a to the host off the Update
// goroutine. Failures are reported back through notifications.
func (m *Model) dispatch(a dispatch.Action) tea.Cmd {
	send := m.send
	return func() tea.Msg {
		if send != nil {
			_ = send.Handle(context.Background(), a)
		}
		return nil
	}
}

// busy reports whether the host is working on something long-running.
func (m *Model) busy() bool {
	if m.snap == nil {
		return false
	}
	c := m.snap.WizardState.StepData.Containerization
	return m.snap.IsAnalyzing || m.snap.IsFetchingSolution || m.snap.IsStartingServer || c.BuildInProgress
}

func (m *Model) currentStep() state.Step {
	if m.snap == nil {
		return ""
	}
	return m.snap.WizardState.CurrentStep
}

// listLen is the length of the list the cursor moves over on the current
// step.
func (m *Model) listLen() int {
	if m.snap == nil {
		return 0
	}
	switch m.currentStep() {
	case state.StepProfile:
		return len(m.snap.Profiles)
	case state.StepAnalysis:
		return len(m.snap.EnhancedIncidents)
	case state.StepResolution:
		if m.focusChanges {
			return len(m.snap.LocalChanges)
		}
		return len(m.snap.EnhancedIncidents)
	case state.StepContainerization:
		return len(m.snap.WizardState.StepData.Containerization.Manifests)
	}
	return 0
}

func (m *Model) clampCursor() {
	n := m.listLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// refresh re-renders the step body into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderStep())
}
