package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianshen/aksmigrate/internal/deploy"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/wizard"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

// Style definitions for the TUI view.
var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#EEEEEE"})
	currentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#0B5CAD", Dark: "#4FA3F7"})
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"})
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
	helpStyle     = mutedStyle
	chatKindStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#6A1B9A", Dark: "#CE93D8"})
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"})
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC8800", Dark: "#FFAA00"})
)

// View implements tea.Model. It renders the TUI as a string.
func (m *Model) View() string {
	if m.quitting {
		if m.finished {
			return "Migration wizard finished.\n"
		}
		return "Goodbye!\n"
	}

	var b strings.Builder

	header := m.appName
	if m.snap != nil && m.snap.WorkspaceRoot != "" {
		header = fmt.Sprintf("%s · %s", m.appName, m.snap.WorkspaceRoot)
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(m.renderSteps())
	b.WriteString("\n")

	dividerWidth := m.width
	if dividerWidth < 1 {
		dividerWidth = 80
	}
	b.WriteString(strings.Repeat("─", dividerWidth))
	b.WriteString("\n")

	switch {
	case m.picker != nil:
		b.WriteString(m.picker.View())
	case m.overlay != nil:
		b.WriteString(m.overlay.Form().View())
		b.WriteString("\n")
	default:
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	for _, n := range m.notices {
		b.WriteString(renderNotice(n))
		b.WriteString("\n")
	}

	if m.busy() {
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.busyText()))
		b.WriteString("\n")
	}
	b.WriteString(m.statusBar.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpText()))
	return b.String()
}

func renderNotice(n noticeMsg) string {
	switch n.level {
	case NoticeError:
		return errorStyle.Render("✗ " + n.text)
	case NoticeWarning:
		return warningStyle.Render("! " + n.text)
	}
	return mutedStyle.Render("i " + n.text)
}

func (m *Model) busyText() string {
	d := m.snap
	c := d.WizardState.StepData.Containerization
	switch {
	case d.IsStartingServer:
		return "Starting analyzer..."
	case d.IsAnalyzing:
		return fmt.Sprintf("Analyzing... %d%%", d.AnalysisProgress)
	case d.IsFetchingSolution:
		return "Fetching solution..."
	case c.BuildInProgress:
		return fmt.Sprintf("Building... %d%%", c.BuildProgress)
	}
	return ""
}

// renderSteps draws the step breadcrumb.
func (m *Model) renderSteps() string {
	steps := m.steps.Steps()
	parts := make([]string, len(steps))
	for i, step := range steps {
		label := fmt.Sprintf("%d %s", i+1, wizard.Title(step))
		if m.snap == nil {
			parts[i] = mutedStyle.Render("○ " + label)
			continue
		}
		switch m.steps.StepStatus(m.snap, step) {
		case wizard.StatusCompleted:
			parts[i] = doneStyle.Render("✓ " + label)
		case wizard.StatusCurrent:
			parts[i] = currentStyle.Render("● " + label)
		default:
			parts[i] = mutedStyle.Render("○ " + label)
		}
	}
	return strings.Join(parts, "  ")
}

func (m *Model) helpText() string {
	nav := "←/→ step · 1-6 jump · q quit"
	switch m.currentStep() {
	case state.StepSetup:
		return "o provider settings · s start analyzer · x stop · h docs · " + nav
	case state.StepProfile:
		return "enter activate · a add · d delete · t targets · l selector · c rules · e edit file · " + nav
	case state.StepAnalysis:
		return "s start analyzer · r run analysis · enter open · f find file · " + nav
	case state.StepResolution:
		if m.focusChanges {
			return "tab incidents · v view · a apply · d discard · " + nav
		}
		return "tab changes · space select · g solve · c solve with context · enter open · " + nav
	case state.StepContainerization:
		return "b build · enter open manifest · " + nav
	case state.StepDeploy:
		return "enter configure and deploy · f finish · " + nav
	}
	return nav
}

func (m *Model) cursorMark(i int) string {
	if i == m.cursor {
		return "> "
	}
	return "  "
}

// renderStep renders the body of the current step.
func (m *Model) renderStep() string {
	if m.snap == nil {
		return RenderBanner()
	}
	d := m.snap
	var b strings.Builder
	b.WriteString(headerStyle.Render(wizard.Title(d.WizardState.CurrentStep)))
	b.WriteString("\n\n")

	switch d.WizardState.CurrentStep {
	case state.StepSetup:
		m.renderSetup(&b)
	case state.StepProfile:
		m.renderProfiles(&b)
	case state.StepAnalysis:
		m.renderAnalysis(&b)
	case state.StepResolution:
		m.renderResolution(&b)
	case state.StepContainerization:
		m.renderContainerization(&b)
	case state.StepDeploy:
		m.renderDeploy(&b)
	}

	if len(d.ConfigErrors) > 0 {
		b.WriteString("\n")
		for _, ce := range d.ConfigErrors {
			b.WriteString(warningStyle.Render("! " + ce.Message))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func check(ok bool) string {
	if ok {
		return doneStyle.Render("✓")
	}
	return mutedStyle.Render("✗")
}

func (m *Model) renderSetup(b *strings.Builder) {
	d := m.snap
	fmt.Fprintf(b, "%s Model provider configured\n", check(d.WizardState.StepData.Setup.ProviderConfigured))
	fmt.Fprintf(b, "%s Analyzer running (%s)\n", check(d.ServerState == state.ServerRunning), d.ServerState)
	fmt.Fprintf(b, "  Solution effort: %s\n", d.SolutionEffort)
}

func (m *Model) renderProfiles(b *strings.Builder) {
	d := m.snap
	if len(d.Profiles) == 0 {
		b.WriteString(mutedStyle.Render("No profiles. Press a to add one."))
		b.WriteString("\n")
		return
	}
	for i, p := range d.Profiles {
		marker := "  "
		if p.ID == d.ActiveProfileID {
			marker = currentStyle.Render("● ")
		}
		name := p.Name
		if p.ReadOnly {
			name += mutedStyle.Render(" (built-in)")
		}
		fmt.Fprintf(b, "%s%s%s\n", m.cursorMark(i), marker, name)
		if i == m.cursor {
			fmt.Fprintf(b, "      selector: %s\n", p.LabelSelector)
			fmt.Fprintf(b, "      default rules: %t  custom rules: %d\n", p.UseDefaultRules, len(p.CustomRules))
		}
	}
}

func incidentLine(inc state.EnhancedIncident) string {
	loc := filepath.Base(workspace.PathFromURI(inc.URI))
	if inc.LineNumber != nil {
		loc = fmt.Sprintf("%s:%d", loc, *inc.LineNumber)
	}
	text := fmt.Sprintf("[%s] %s  %s", inc.ViolationID, loc, inc.Message)
	if inc.Resolved {
		return doneStyle.Render("✓ ") + mutedStyle.Render(text)
	}
	return "  " + text
}

func (m *Model) renderAnalysis(b *strings.Builder) {
	d := m.snap
	a := d.WizardState.StepData.Analysis
	if !a.AnalysisCompleted {
		b.WriteString(mutedStyle.Render("No analysis results yet. Start the analyzer and press r."))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "%d rule set(s), %d incident(s)\n\n", len(d.RuleSets), len(d.EnhancedIncidents))
	for i, inc := range d.EnhancedIncidents {
		b.WriteString(m.cursorMark(i))
		b.WriteString(incidentLine(inc))
		b.WriteString("\n")
	}
}

func (m *Model) renderResolution(b *strings.Builder) {
	d := m.snap
	fmt.Fprintf(b, "Unresolved: %d of %d  ·  solution: %s\n\n", d.UnresolvedIncidents(), len(d.EnhancedIncidents), d.SolutionState)

	b.WriteString(headerStyle.Render("Incidents"))
	b.WriteString("\n")
	for i, inc := range d.EnhancedIncidents {
		mark := "  "
		if !m.focusChanges {
			mark = m.cursorMark(i)
		}
		sel := "[ ]"
		if m.selected[inc.Key()] {
			sel = "[x]"
		}
		fmt.Fprintf(b, "%s%s%s\n", mark, sel, incidentLine(inc))
	}

	if len(d.LocalChanges) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Proposed changes"))
		b.WriteString("\n")
		for i, c := range d.LocalChanges {
			mark := "  "
			if m.focusChanges {
				mark = m.cursorMark(i)
			}
			fmt.Fprintf(b, "%s%-9s %s\n", mark, c.State, workspace.PathFromURI(c.OriginalURI))
			if m.focusChanges && i == m.cursor && c.Diff != "" {
				b.WriteString(mutedStyle.Render(c.Diff))
				b.WriteString("\n")
			}
		}
	}

	if len(d.ChatMessages) > 0 {
		b.WriteString("\n")
		b.WriteString(m.md.RenderChat(d.ChatMessages))
	}
	if d.SolutionData != nil {
		for _, e := range d.SolutionData.EncounteredErrors {
			b.WriteString(warningStyle.Render("! " + e))
			b.WriteString("\n")
		}
	}
}

func (m *Model) renderContainerization(b *strings.Builder) {
	c := m.snap.WizardState.StepData.Containerization
	fmt.Fprintf(b, "%s Quarkus project\n", check(c.IsQuarkusProject))
	fmt.Fprintf(b, "%s Kubernetes extension\n", check(c.HasKubernetesExtension))
	if c.BuildInProgress {
		fmt.Fprintf(b, "\nBuilding: %d%%\n", c.BuildProgress)
	}
	if c.BuildOutcome != "" {
		fmt.Fprintf(b, "\nLast build: %s\n", c.BuildOutcome)
	}
	if c.BuildError != "" {
		b.WriteString(errorStyle.Render(c.BuildError))
		b.WriteString("\n")
	}
	if len(c.Manifests) > 0 {
		b.WriteString("\nManifests:\n")
		for i, path := range c.Manifests {
			fmt.Fprintf(b, "%s%s\n", m.cursorMark(i), path)
		}
	}
}

func (m *Model) renderDeploy(b *strings.Builder) {
	dep := m.snap.WizardState.StepData.Deploy
	target := dep.DeploymentTarget
	if t, ok := deploy.FindTarget(target); ok {
		target = fmt.Sprintf("%s (namespace %s)", t.Name, t.Namespace)
	}
	fmt.Fprintf(b, "Target: %s\n", target)
	if len(dep.SelectedStakeholders) == 0 {
		b.WriteString("Stakeholders: none selected\n")
	} else {
		b.WriteString("Stakeholders:\n")
		for _, id := range dep.SelectedStakeholders {
			if r, ok := deploy.FindRole(id); ok {
				fmt.Fprintf(b, "  %s\n", r.Name)
			}
		}
	}
	if len(dep.Plan) > 0 {
		b.WriteString("\nPlan:\n")
		for _, line := range dep.Plan {
			fmt.Fprintf(b, "  $ %s\n", line)
		}
	}
	if dep.DeploymentComplete {
		tasks := deploy.Tasks(dep.SelectedStakeholders)
		if len(tasks) > 0 {
			b.WriteString("\nNext tasks:\n")
			for _, t := range tasks {
				fmt.Fprintf(b, "  - %s\n", t)
			}
		}
		b.WriteString("\n")
		b.WriteString(doneStyle.Render("Deployment plan ready. Press f to finish."))
		b.WriteString("\n")
	}
}
