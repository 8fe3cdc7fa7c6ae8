// Package wizard implements the migration wizard step machine on top of
// state.ExtensionData drafts. Every function here edits a draft in place
// and is meant to run inside a state.Container mutation.
package wizard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/julianshen/aksmigrate/internal/state"
)

// ErrUnknownStep is returned by SetStep for a step the machine does not have.
var ErrUnknownStep = errors.New("unknown wizard step")

// Steps is the canonical six-step sequence.
var Steps = []state.Step{
	state.StepSetup,
	state.StepProfile,
	state.StepAnalysis,
	state.StepResolution,
	state.StepContainerization,
	state.StepDeploy,
}

// ClassicSteps is the earlier four-step sequence without containerization
// and deploy, kept for callers that only drive analysis and resolution.
var ClassicSteps = Steps[:4:4]

// Machine walks a fixed sequence of steps.
type Machine struct {
	steps []state.Step
}

// New returns a machine over steps. An empty list selects Steps.
func New(steps []state.Step) Machine {
	if len(steps) == 0 {
		steps = Steps
	}
	return Machine{steps: slices.Clone(steps)}
}

// Steps returns the sequence the machine walks.
func (m Machine) Steps() []state.Step {
	return slices.Clone(m.steps)
}

// Index returns the position of step, or -1.
func (m Machine) Index(step state.Step) int {
	return slices.Index(m.steps, step)
}

// Last reports whether step is the terminal step.
func (m Machine) Last(step state.Step) bool {
	return m.Index(step) == len(m.steps)-1
}

// Next advances to the following step and records it as completed. On the
// terminal step it resets the wizard instead and reports finished so the
// caller can close the wizard surface. Guards are not evaluated.
func (m Machine) Next(d *state.ExtensionData) (finished bool) {
	ws := &d.WizardState
	idx := m.Index(ws.CurrentStep)
	if idx >= len(m.steps)-1 {
		Reset(d)
		return true
	}

	ws.CurrentStep = m.steps[idx+1]
	markCompleted(ws, ws.CurrentStep)
	Refresh(d, m)
	return false
}

// Previous moves one step back. It does nothing on the first step.
func (m Machine) Previous(d *state.ExtensionData) {
	ws := &d.WizardState
	if idx := m.Index(ws.CurrentStep); idx > 0 {
		ws.CurrentStep = m.steps[idx-1]
	}
	Refresh(d, m)
}

// SetStep jumps straight to step and marks it completed, bypassing guards.
func (m Machine) SetStep(d *state.ExtensionData, step state.Step) error {
	if m.Index(step) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	d.WizardState.CurrentStep = step
	markCompleted(&d.WizardState, step)
	Refresh(d, m)
	return nil
}

// Finish resets the wizard and all session-scoped state.
func (m Machine) Finish(d *state.ExtensionData) {
	Reset(d)
}

func markCompleted(ws *state.WizardState, step state.Step) {
	if !slices.Contains(ws.CompletedSteps, step) {
		ws.CompletedSteps = append(ws.CompletedSteps, step)
	}
}

// Reset returns the wizard to the first step and clears step data together
// with the solution and analysis session fields.
func Reset(d *state.ExtensionData) {
	ws := &d.WizardState
	ws.CompletedSteps = []state.Step{}
	ws.CurrentStep = state.StepSetup
	ws.CanNavigateBack = false
	ws.CanNavigateForward = false

	ws.StepData.Setup.ProviderConfigured = false
	ws.StepData.Profile.SelectedProfileID = ""
	ws.StepData.Profile.ProfilesLoaded = false
	ws.StepData.Analysis = state.AnalysisData{}
	ws.StepData.Resolution = state.ResolutionData{SelectedIncidents: []string{}}
	ws.StepData.Containerization = state.ContainerizationData{}
	ws.StepData.Deploy = state.DeployData{
		SelectedStakeholders: []string{},
		DeploymentTarget:     "development",
	}

	d.LocalChanges = []state.LocalChange{}
	d.SolutionData = nil
	d.SolutionScope = nil
	d.SolutionState = state.SolutionInitial
	d.IsFetchingSolution = false
	d.ChatMessages = []state.ChatMessage{}

	d.EnhancedIncidents = []state.EnhancedIncident{}
	d.RuleSets = []state.RuleSet{}
	d.IsAnalyzing = false
	d.AnalysisProgress = 0
}
