package wizard

import (
	"github.com/julianshen/aksmigrate/internal/analysisconfig"
	"github.com/julianshen/aksmigrate/internal/state"
)

// Ready reports whether step's completion guard holds for d. Guards are
// advisory: views consult them before offering Next, the machine does not.
func Ready(step state.Step, d *state.ExtensionData) bool {
	sd := d.WizardState.StepData
	switch step {
	case state.StepSetup:
		return analysisconfig.ProviderReady(d.ConfigErrors)
	case state.StepProfile:
		return d.ActiveProfileID != ""
	case state.StepAnalysis:
		return sd.Analysis.AnalysisCompleted
	case state.StepResolution:
		return d.UnresolvedIncidents() == 0 || sd.Resolution.SolutionApplied
	case state.StepContainerization:
		return sd.Containerization.DeploymentReady
	case state.StepDeploy:
		return sd.Deploy.DeploymentComplete
	}
	return false
}

// Refresh recomputes the navigation flags for the current step.
func Refresh(d *state.ExtensionData, m Machine) {
	ws := &d.WizardState
	ws.CanNavigateBack = m.Index(ws.CurrentStep) > 0
	ws.CanNavigateForward = Ready(ws.CurrentStep, d)
}

// Status is how a step relates to the current one.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusPending   Status = "pending"
)

// StepStatus classifies step by its position relative to the current step.
func (m Machine) StepStatus(d *state.ExtensionData, step state.Step) Status {
	cur := m.Index(d.WizardState.CurrentStep)
	idx := m.Index(step)
	switch {
	case idx < cur:
		return StatusCompleted
	case idx == cur:
		return StatusCurrent
	}
	return StatusPending
}

// Title returns the display name of step.
func Title(step state.Step) string {
	switch step {
	case state.StepSetup:
		return "Setup"
	case state.StepProfile:
		return "Profile"
	case state.StepAnalysis:
		return "Analysis"
	case state.StepResolution:
		return "Resolution"
	case state.StepContainerization:
		return "Containerization"
	case state.StepDeploy:
		return "Deploy"
	}
	return string(step)
}
