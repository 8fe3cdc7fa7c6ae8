package tui

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

// DocsURL is opened from the setup step.
const DocsURL = "https://learn.microsoft.com/azure/aks/"

// Init implements tea.Model. It starts the spinner and tells the host the
// view is ready.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.dispatch(dispatch.WebviewReady{}))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Route everything but host messages to the form overlay when active.
	if m.overlay != nil && m.picker == nil {
		switch msg.(type) {
		case snapshotMsg, noticeMsg, pickRequestMsg, wizardClosedMsg:
		default:
			return m.updateOverlay(msg)
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Reserve space for header, steps, divider, notices, spinner,
		// status and help lines.
		vpHeight := m.height - 6 - maxNotices
		if vpHeight < 3 {
			vpHeight = 3
		}
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.statusBar.SetWidth(m.width)
		if md, err := NewMarkdownRenderer(m.width - 4); err == nil {
			m.md = md
		}
		if m.snap != nil {
			m.refresh()
		}
		return m, nil

	case snapshotMsg:
		if msg.data == nil || (m.snap != nil && msg.seq <= m.seq) {
			return m, nil
		}
		prevStep := m.currentStep()
		m.snap, m.seq = msg.data, msg.seq
		if m.currentStep() != prevStep {
			m.cursor = 0
			m.focusChanges = false
		}
		m.clampCursor()
		m.statusBar.Update(m.snap)
		m.refresh()
		return m, nil

	case noticeMsg:
		m.notices = append(m.notices, msg)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, nil

	case pickRequestMsg:
		if m.picker != nil {
			// One pick at a time; the host treats this as dismissed.
			msg.response <- pickResult{}
			return m, nil
		}
		m.picker = NewPicker(msg.title, msg.items, m.width)
		m.pickResp = msg.response
		return m, nil

	case wizardClosedMsg:
		m.finished = true
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) updateOverlay(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyCtrlC {
		m.overlay = nil
		return m, nil
	}
	form, cmd := m.overlay.Form().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.overlay.SetForm(f)
	}
	switch m.overlay.Form().State {
	case huh.StateCompleted:
		action := m.overlay.Action()
		m.overlay = nil
		return m, tea.Batch(cmd, m.dispatch(action))
	case huh.StateAborted:
		m.overlay = nil
	}
	return m, cmd
}

func (m *Model) openOverlay(o *Overlay) tea.Cmd {
	m.overlay = o
	return o.Form().Init()
}

func (m *Model) answerPick(r pickResult) {
	if m.pickResp != nil {
		m.pickResp <- r
	}
	m.picker = nil
	m.pickResp = nil
}

// handleKeyMsg processes keyboard input.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits, regardless of state.
	if msg.Type == tea.KeyCtrlC {
		if m.picker != nil {
			m.answerPick(pickResult{})
		}
		m.quitting = true
		return m, tea.Quit
	}

	if m.picker != nil {
		if m.picker.HandleKey(msg) {
			m.answerPick(pickResult{value: m.picker.Selected(), ok: !m.picker.Cancelled()})
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.refresh()
		}
		return m, nil
	case "down", "j":
		if m.cursor < m.listLen()-1 {
			m.cursor++
			m.refresh()
		}
		return m, nil
	}

	if m.snap == nil {
		return m, nil
	}

	switch msg.String() {
	case "right", "n":
		if !m.snap.WizardState.CanNavigateForward {
			m.notices = append(m.notices, noticeMsg{level: NoticeWarning, text: "Complete this step before moving on."})
			return m, nil
		}
		return m, m.dispatch(dispatch.WizardNextStep{})
	case "left", "p":
		if !m.snap.WizardState.CanNavigateBack {
			return m, nil
		}
		return m, m.dispatch(dispatch.WizardPreviousStep{})
	case "1", "2", "3", "4", "5", "6":
		i := int(msg.String()[0] - '1')
		steps := m.steps.Steps()
		if i < len(steps) {
			return m, m.dispatch(dispatch.WizardSetStep{Step: steps[i]})
		}
		return m, nil
	}

	return m, m.handleStepKey(msg.String())
}

// handleStepKey runs the keys that belong to the current step.
func (m *Model) handleStepKey(key string) tea.Cmd {
	d := m.snap
	switch m.currentStep() {
	case state.StepSetup:
		switch key {
		case "o":
			return m.dispatch(dispatch.OpenGenAISettings{})
		case "s":
			return m.dispatch(dispatch.StartServer{})
		case "x":
			return m.dispatch(dispatch.StopServer{})
		case "h":
			return m.dispatch(dispatch.OpenURL{URL: DocsURL})
		}

	case state.StepProfile:
		switch key {
		case "a":
			return m.openOverlay(NewProfileForm(m.targets, m.sources))
		case "e":
			return m.dispatch(dispatch.OpenProfileManager{})
		case "t":
			return m.dispatch(dispatch.ConfigureSourcesTargets{})
		case "l":
			return m.dispatch(dispatch.ConfigureLabelSelector{})
		}
		if m.cursor >= len(d.Profiles) {
			return nil
		}
		p := d.Profiles[m.cursor]
		switch key {
		case "enter", " ":
			return m.dispatch(dispatch.SetActiveProfile{ProfileID: p.ID})
		case "d":
			return m.dispatch(dispatch.DeleteProfile{ProfileID: p.ID})
		case "c":
			return m.dispatch(dispatch.ConfigureCustomRules{ProfileID: p.ID})
		}

	case state.StepAnalysis:
		switch key {
		case "s":
			return m.dispatch(dispatch.StartServer{})
		case "r":
			return m.dispatch(dispatch.RunAnalysis{})
		case "enter":
			if inc, ok := m.cursorIncident(); ok {
				return m.dispatch(openIncident(inc))
			}
		case "f":
			if inc, ok := m.cursorIncident(); ok {
				return m.dispatch(dispatch.FindAndOpenFile{FileName: filepath.Base(workspace.PathFromURI(inc.URI))})
			}
		}

	case state.StepResolution:
		if key == "tab" {
			m.focusChanges = !m.focusChanges
			m.cursor = 0
			m.clampCursor()
			m.refresh()
			return nil
		}
		if m.focusChanges {
			return m.handleChangeKey(key)
		}
		return m.handleIncidentKey(key)

	case state.StepContainerization:
		switch key {
		case "b":
			return m.dispatch(dispatch.BuildQuarkusKubernetes{})
		case "enter":
			manifests := d.WizardState.StepData.Containerization.Manifests
			if m.cursor < len(manifests) {
				return m.dispatch(dispatch.OpenFile{File: manifests[m.cursor]})
			}
		}

	case state.StepDeploy:
		dep := d.WizardState.StepData.Deploy
		switch key {
		case "enter", "s":
			return m.openOverlay(NewDeployForm(dep.DeploymentTarget, dep.SelectedStakeholders))
		case "f":
			return m.dispatch(dispatch.WizardFinish{})
		}
	}
	return nil
}

func (m *Model) cursorIncident() (state.EnhancedIncident, bool) {
	if m.snap == nil || m.cursor >= len(m.snap.EnhancedIncidents) {
		return state.EnhancedIncident{}, false
	}
	return m.snap.EnhancedIncidents[m.cursor], true
}

func openIncident(inc state.EnhancedIncident) dispatch.Action {
	line := 0
	if inc.LineNumber != nil {
		line = *inc.LineNumber
	}
	return dispatch.OpenFile{File: workspace.PathFromURI(inc.URI), Line: line}
}

// selectedIncidents returns the marked incidents in list order, or the one
// under the cursor when none are marked.
func (m *Model) selectedIncidents() []state.EnhancedIncident {
	var out []state.EnhancedIncident
	for _, inc := range m.snap.EnhancedIncidents {
		if m.selected[inc.Key()] {
			out = append(out, inc)
		}
	}
	if len(out) == 0 {
		if inc, ok := m.cursorIncident(); ok {
			out = append(out, inc)
		}
	}
	return out
}

func (m *Model) handleIncidentKey(key string) tea.Cmd {
	switch key {
	case " ":
		if inc, ok := m.cursorIncident(); ok {
			k := inc.Key()
			if m.selected[k] {
				delete(m.selected, k)
			} else {
				m.selected[k] = true
			}
			m.refresh()
		}
	case "g":
		incidents := m.selectedIncidents()
		if len(incidents) == 0 {
			return nil
		}
		m.selected = map[string]bool{}
		return m.dispatch(dispatch.GetSolution{Incidents: incidents, Effort: m.snap.SolutionEffort})
	case "c":
		if inc, ok := m.cursorIncident(); ok {
			return m.dispatch(dispatch.GetSolutionWithContext{Incident: inc})
		}
	case "enter":
		if inc, ok := m.cursorIncident(); ok {
			return m.dispatch(openIncident(inc))
		}
	}
	return nil
}

func (m *Model) handleChangeKey(key string) tea.Cmd {
	if m.cursor >= len(m.snap.LocalChanges) {
		return nil
	}
	change := m.snap.LocalChanges[m.cursor]
	switch key {
	case "enter", "v":
		return m.dispatch(dispatch.ViewFix{Change: change})
	case "a":
		if change.State == state.ChangePending {
			return m.dispatch(dispatch.ApplyFile{Change: change})
		}
	case "d":
		if change.State == state.ChangePending {
			return m.dispatch(dispatch.DiscardFile{Change: change})
		}
	}
	return nil
}
