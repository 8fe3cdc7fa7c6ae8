package state

import (
	"strconv"

	"github.com/julianshen/aksmigrate/internal/profile"
)

// ServerState mirrors the lifecycle of the external analyzer process.
type ServerState string

const (
	ServerInitial           ServerState = "initial"
	ServerStarting          ServerState = "starting"
	ServerReadyToInitialize ServerState = "readyToInitialize"
	ServerInitializing      ServerState = "initializing"
	ServerRunning           ServerState = "running"
	ServerStartFailed       ServerState = "startFailed"
)

// SolutionState tracks the AI solution session.
type SolutionState string

const (
	SolutionNone            SolutionState = "none"
	SolutionInitial         SolutionState = "initial"
	SolutionStarted         SolutionState = "started"
	SolutionSent            SolutionState = "sent"
	SolutionReceived        SolutionState = "received"
	SolutionFailedOnStart   SolutionState = "failedOnStart"
	SolutionFailedOnSending SolutionState = "failedOnSending"
)

// ChangeState is the lifecycle of a proposed file edit.
type ChangeState string

const (
	ChangePending   ChangeState = "pending"
	ChangeApplied   ChangeState = "applied"
	ChangeDiscarded ChangeState = "discarded"
)

// Step identifies one stage of the migration wizard.
type Step string

const (
	StepSetup            Step = "setup"
	StepProfile          Step = "profile"
	StepAnalysis         Step = "analysis"
	StepResolution       Step = "resolution"
	StepContainerization Step = "containerization"
	StepDeploy           Step = "deploy"
)

// ConfigErrorType classifies a derived configuration problem.
type ConfigErrorType string

const (
	ErrNoActiveProfile         ConfigErrorType = "no-active-profile"
	ErrInvalidLabelSelector    ConfigErrorType = "invalid-label-selector"
	ErrNoCustomRules           ConfigErrorType = "no-custom-rules"
	ErrProviderNotConfigured   ConfigErrorType = "provider-not-configured"
	ErrProviderKeyMissing      ConfigErrorType = "provider-key-missing"
	ErrMissingProviderSettings ConfigErrorType = "missing-provider-settings"
)

// ConfigError is one entry of the derived validation state.
type ConfigError struct {
	Type    ConfigErrorType `json:"type"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
}

// AnalysisConfig is the flag-bag view of ConfigErrors kept for views that
// still read it. It is recomputed from ConfigErrors on every derivation.
type AnalysisConfig struct {
	LabelSelectorValid    bool `json:"labelSelectorValid"`
	ProviderConfigured    bool `json:"providerConfigured"`
	ProviderKeyMissing    bool `json:"providerKeyMissing"`
	CustomRulesConfigured bool `json:"customRulesConfigured"`
}

// Incident is a single location flagged by analysis.
type Incident struct {
	URI        string         `json:"uri" yaml:"uri"`
	Message    string         `json:"message" yaml:"message"`
	LineNumber *int           `json:"lineNumber,omitempty" yaml:"lineNumber,omitempty"`
	CodeSnip   string         `json:"codeSnip,omitempty" yaml:"codeSnip,omitempty"`
	Variables  map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Violation groups the incidents produced by one rule.
type Violation struct {
	Description string     `json:"description" yaml:"description"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	Labels      []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	Incidents   []Incident `json:"incidents" yaml:"incidents"`
}

// RuleSet is the analyzer output for one rule set.
type RuleSet struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Violations  map[string]Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
	Errors      map[string]string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Unmatched   []string             `json:"unmatched,omitempty" yaml:"unmatched,omitempty"`
}

// EnhancedIncident is an Incident annotated with the violation it belongs to.
type EnhancedIncident struct {
	Incident
	ViolationID          string `json:"violationId"`
	RuleSetName          string `json:"ruleSetName,omitempty"`
	ViolationDescription string `json:"violationDescription,omitempty"`
	ViolationCategory    string `json:"violationCategory,omitempty"`
	Resolved             bool   `json:"resolved"`
}

// Key returns the composite identity of the incident used to join fixes
// back to analysis results.
func (e EnhancedIncident) Key() string {
	line := "unknown"
	if e.LineNumber != nil {
		line = strconv.Itoa(*e.LineNumber)
	}
	return e.ViolationID + "|" + e.URI + "|" + line
}

// LocalChange is a file edit proposed by the solution backend.
type LocalChange struct {
	OriginalURI string      `json:"originalUri"`
	ModifiedURI string      `json:"modifiedUri"`
	Diff        string      `json:"diff,omitempty"`
	State       ChangeState `json:"state"`
}

// Scope is the set of incidents a solution was requested for.
type Scope struct {
	Incidents []EnhancedIncident `json:"incidents"`
	Effort    string             `json:"effort,omitempty"`
}

// FileChange is one file in a received solution.
type FileChange struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	Modified string `json:"modified"`
}

// SolutionData is the result of the last solution request.
type SolutionData struct {
	Changes           []FileChange `json:"changes"`
	EncounteredErrors []string     `json:"encounteredErrors,omitempty"`
}

// ChatMessage is one entry of the solution conversation shown to the user.
type ChatMessage struct {
	MessageToken string `json:"messageToken"`
	Kind         string `json:"kind"`
	Value        string `json:"value"`
	Timestamp    string `json:"timestamp"`
}

// SetupData holds the fields the setup step guard reads.
type SetupData struct {
	ProviderConfigured bool `json:"providerConfigured"`
}

// ProfileData holds the fields the profile step guard reads.
type ProfileData struct {
	SelectedProfileID string `json:"selectedProfileId,omitempty"`
	ProfilesLoaded    bool   `json:"profilesLoaded"`
}

// AnalysisData holds the fields the analysis step guard reads.
type AnalysisData struct {
	AnalysisCompleted bool `json:"analysisCompleted"`
	HasIncidents      bool `json:"hasIncidents"`
}

// ResolutionData holds the fields the resolution step guard reads.
type ResolutionData struct {
	SelectedIncidents []string `json:"selectedIncidents"`
	SolutionApplied   bool     `json:"solutionApplied"`
}

// BuildOutcome classifies how a containerization build ended.
type BuildOutcome string

const (
	BuildSuccessWithManifests BuildOutcome = "success-with-manifests"
	BuildSuccessNoManifests   BuildOutcome = "success-no-manifests"
	BuildFailure              BuildOutcome = "failure"
)

// ContainerizationData holds the containerization step state.
type ContainerizationData struct {
	DockerfileGenerated    bool         `json:"dockerfileGenerated"`
	K8sConfigsGenerated    bool         `json:"k8sConfigsGenerated"`
	DeploymentReady        bool         `json:"deploymentReady"`
	IsQuarkusProject       bool         `json:"isQuarkusProject"`
	HasKubernetesExtension bool         `json:"hasKubernetesExtension"`
	BuildInProgress        bool         `json:"buildInProgress"`
	BuildProgress          int          `json:"buildProgress"`
	BuildOutcome           BuildOutcome `json:"buildOutcome,omitempty"`
	Manifests              []string     `json:"manifests,omitempty"`
	BuildError             string       `json:"buildError,omitempty"`
}

// DeployData holds the deploy step state.
type DeployData struct {
	SelectedStakeholders []string `json:"selectedStakeholders"`
	DeploymentTarget     string   `json:"deploymentTarget"`
	DeploymentComplete   bool     `json:"deploymentComplete"`
	Plan                 []string `json:"plan,omitempty"`
}

// StepData groups the step-local state of every wizard step.
type StepData struct {
	Setup            SetupData            `json:"setup"`
	Profile          ProfileData          `json:"profile"`
	Analysis         AnalysisData         `json:"analysis"`
	Resolution       ResolutionData       `json:"resolution"`
	Containerization ContainerizationData `json:"containerization"`
	Deploy           DeployData           `json:"deploy"`
}

// WizardState is the navigation state of the migration wizard.
type WizardState struct {
	CurrentStep        Step     `json:"currentStep"`
	CompletedSteps     []Step   `json:"completedSteps"`
	CanNavigateBack    bool     `json:"canNavigateBack"`
	CanNavigateForward bool     `json:"canNavigateForward"`
	StepData           StepData `json:"stepData"`
}

// ExtensionData is the single source of truth shared with every view.
type ExtensionData struct {
	LocalChanges          []LocalChange             `json:"localChanges"`
	RuleSets              []RuleSet                 `json:"ruleSets"`
	EnhancedIncidents     []EnhancedIncident        `json:"enhancedIncidents"`
	IsAnalyzing           bool                      `json:"isAnalyzing"`
	AnalysisProgress      int                       `json:"analysisProgress"`
	IsFetchingSolution    bool                      `json:"isFetchingSolution"`
	IsStartingServer      bool                      `json:"isStartingServer"`
	IsAnalysisScheduled   bool                      `json:"isAnalysisScheduled"`
	ServerState           ServerState               `json:"serverState"`
	SolutionData          *SolutionData             `json:"solutionData,omitempty"`
	SolutionScope         *Scope                    `json:"solutionScope,omitempty"`
	SolutionState         SolutionState             `json:"solutionState"`
	SolutionEffort        string                    `json:"solutionEffort"`
	SolutionServerEnabled bool                      `json:"solutionServerEnabled"`
	ChatMessages          []ChatMessage             `json:"chatMessages"`
	WorkspaceRoot         string                    `json:"workspaceRoot"`
	Profiles              []profile.AnalysisProfile `json:"profiles"`
	ActiveProfileID       string                    `json:"activeProfileId"`
	AnalysisConfig        AnalysisConfig            `json:"analysisConfig"`
	ConfigErrors          []ConfigError             `json:"configErrors"`
	WizardState           WizardState               `json:"wizardState"`
}

// Default returns the snapshot the process starts with.
func Default(workspaceRoot string) *ExtensionData {
	return &ExtensionData{
		LocalChanges:      []LocalChange{},
		RuleSets:          []RuleSet{},
		EnhancedIncidents: []EnhancedIncident{},
		ServerState:       ServerInitial,
		SolutionState:     SolutionNone,
		SolutionEffort:    "Low",
		ChatMessages:      []ChatMessage{},
		WorkspaceRoot:     workspaceRoot,
		Profiles:          []profile.AnalysisProfile{},
		ConfigErrors:      []ConfigError{},
		WizardState:       DefaultWizardState(),
	}
}

// DefaultWizardState returns the wizard positioned on the first step with
// every step guard unsatisfied.
func DefaultWizardState() WizardState {
	return WizardState{
		CurrentStep:    StepSetup,
		CompletedSteps: []Step{},
		StepData: StepData{
			Resolution: ResolutionData{SelectedIncidents: []string{}},
			Deploy: DeployData{
				SelectedStakeholders: []string{},
				DeploymentTarget:     "development",
			},
		},
	}
}

// ActiveProfile returns the profile referenced by ActiveProfileID.
func (d *ExtensionData) ActiveProfile() (profile.AnalysisProfile, bool) {
	if d.ActiveProfileID == "" {
		return profile.AnalysisProfile{}, false
	}
	return profile.Find(d.Profiles, d.ActiveProfileID)
}

// HasConfigError reports whether an error of the given kind is present.
func (d *ExtensionData) HasConfigError(t ConfigErrorType) bool {
	for _, e := range d.ConfigErrors {
		if e.Type == t {
			return true
		}
	}
	return false
}

// UnresolvedIncidents counts enhanced incidents not yet marked resolved.
func (d *ExtensionData) UnresolvedIncidents() int {
	n := 0
	for _, inc := range d.EnhancedIncidents {
		if !inc.Resolved {
			n++
		}
	}
	return n
}
