package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julianshen/aksmigrate/internal/state"
)

func TestReady_Setup(t *testing.T) {
	d := state.Default("")
	assert.True(t, Ready(state.StepSetup, d))

	d.ConfigErrors = []state.ConfigError{{Type: state.ErrProviderKeyMissing}}
	assert.False(t, Ready(state.StepSetup, d))

	d.ConfigErrors = []state.ConfigError{{Type: state.ErrProviderNotConfigured}}
	assert.False(t, Ready(state.StepSetup, d))

	d.ConfigErrors = []state.ConfigError{{Type: state.ErrNoCustomRules}}
	assert.True(t, Ready(state.StepSetup, d))
}

func TestReady_Profile(t *testing.T) {
	d := state.Default("")
	assert.False(t, Ready(state.StepProfile, d))
	d.ActiveProfileID = "p1"
	assert.True(t, Ready(state.StepProfile, d))
}

func TestReady_Analysis(t *testing.T) {
	d := state.Default("")
	assert.False(t, Ready(state.StepAnalysis, d))
	d.WizardState.StepData.Analysis.AnalysisCompleted = true
	assert.True(t, Ready(state.StepAnalysis, d))
}

func TestReady_Resolution(t *testing.T) {
	d := state.Default("")
	assert.True(t, Ready(state.StepResolution, d), "no incidents")

	d.EnhancedIncidents = []state.EnhancedIncident{{ViolationID: "a"}, {ViolationID: "b", Resolved: true}}
	assert.False(t, Ready(state.StepResolution, d))

	d.EnhancedIncidents[0].Resolved = true
	assert.True(t, Ready(state.StepResolution, d), "all resolved")

	d.EnhancedIncidents[0].Resolved = false
	d.WizardState.StepData.Resolution.SolutionApplied = true
	assert.True(t, Ready(state.StepResolution, d))
}

func TestReady_ContainerizationAndDeploy(t *testing.T) {
	d := state.Default("")
	assert.False(t, Ready(state.StepContainerization, d))
	assert.False(t, Ready(state.StepDeploy, d))

	d.WizardState.StepData.Containerization.DeploymentReady = true
	d.WizardState.StepData.Deploy.DeploymentComplete = true
	assert.True(t, Ready(state.StepContainerization, d))
	assert.True(t, Ready(state.StepDeploy, d))

	assert.False(t, Ready("bogus", d))
}

func TestRefresh(t *testing.T) {
	m := New(nil)
	d := state.Default("")
	d.WizardState.CurrentStep = state.StepProfile
	d.ActiveProfileID = "p1"

	Refresh(d, m)

	assert.True(t, d.WizardState.CanNavigateBack)
	assert.True(t, d.WizardState.CanNavigateForward)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Containerization", Title(state.StepContainerization))
	assert.Equal(t, "other", Title("other"))
}
