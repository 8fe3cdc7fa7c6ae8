package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/state"
)

// ErrUnknownAction is returned by Decode for an unrecognized type.
var ErrUnknownAction = errors.New("unknown action type")

// Action type strings on the wire.
const (
	TypeAddProfile                = "ADD_PROFILE"
	TypeDeleteProfile             = "DELETE_PROFILE"
	TypeUpdateProfile             = "UPDATE_PROFILE"
	TypeSetActiveProfile          = "SET_ACTIVE_PROFILE"
	TypeOpenProfileManager        = "OPEN_PROFILE_MANAGER"
	TypeConfigureSourcesTargets   = "CONFIGURE_SOURCES_TARGETS"
	TypeConfigureLabelSelector    = "CONFIGURE_LABEL_SELECTOR"
	TypeConfigureCustomRules      = "CONFIGURE_CUSTOM_RULES"
	TypeOpenGenAISettings         = "OPEN_GENAI_SETTINGS"
	TypeOpenURL                   = "OPEN_URL"
	TypeFindAndOpenFile           = "FIND_AND_OPEN_FILE"
	TypeOpenFile                  = "OPEN_FILE"
	TypeStartServer               = "START_SERVER"
	TypeStopServer                = "STOP_SERVER"
	TypeRunAnalysis               = "RUN_ANALYSIS"
	TypeGetSolution               = "GET_SOLUTION"
	TypeGetSolutionWithContext    = "GET_SOLUTION_WITH_CONTEXT"
	TypeViewFix                   = "VIEW_FIX"
	TypeApplyFile                 = "APPLY_FILE"
	TypeDiscardFile               = "DISCARD_FILE"
	TypeWizardNextStep            = "WIZARD_NEXT_STEP"
	TypeWizardPreviousStep        = "WIZARD_PREVIOUS_STEP"
	TypeWizardSetStep             = "WIZARD_SET_STEP"
	TypeWizardFinish              = "WIZARD_FINISH"
	TypeUpdateWizardState         = "UPDATE_WIZARD_STATE"
	TypeBuildQuarkusKubernetes    = "BUILD_QUARKUS_KUBERNETES"
	TypeDeployApplication         = "DEPLOY_APPLICATION"
	TypeWebviewReady              = "WEBVIEW_READY"
	TypeOverrideAnalyzerBinaries  = "OVERRIDE_ANALYZER_BINARIES"
	TypeOverrideRPCServerBinaries = "OVERRIDE_RPC_SERVER_BINARIES"
	TypePickResponse              = "PICK_RESPONSE"
)

// Action is one message from a view. The set of implementations is closed;
// Dispatcher.Handle switches over all of them.
type Action interface {
	Type() string
	sealed()
}

type (
	AddProfile       struct{ Profile profile.AnalysisProfile }
	DeleteProfile    struct{ ProfileID string }
	SetActiveProfile struct{ ProfileID string }
	UpdateProfile    struct {
		OriginalID     string                  `json:"originalId"`
		UpdatedProfile profile.AnalysisProfile `json:"updatedProfile"`
	}

	OpenProfileManager      struct{}
	ConfigureSourcesTargets struct{}
	ConfigureLabelSelector  struct{}
	ConfigureCustomRules    struct {
		ProfileID string `json:"profileId"`
	}
	OpenGenAISettings struct{}
	OpenURL           struct{ URL string }
	FindAndOpenFile   struct{ FileName string }
	OpenFile          struct {
		File string `json:"file"`
		Line int    `json:"line"`
	}

	StartServer struct{}
	StopServer  struct{}
	RunAnalysis struct{}

	GetSolution struct {
		Incidents []state.EnhancedIncident `json:"incidents"`
		Effort    string                   `json:"effort"`
	}
	GetSolutionWithContext struct {
		Incident state.EnhancedIncident `json:"incident"`
	}
	ViewFix     struct{ Change state.LocalChange }
	ApplyFile   struct{ Change state.LocalChange }
	DiscardFile struct{ Change state.LocalChange }

	WizardNextStep     struct{}
	WizardPreviousStep struct{}
	WizardSetStep      struct{ Step state.Step }
	WizardFinish       struct{}
	// UpdateWizardState carries view-owned step data. Only the
	// containerization and deploy entries are taken from it.
	UpdateWizardState struct{ WizardState state.WizardState }

	BuildQuarkusKubernetes struct{}
	DeployApplication      struct {
		Target       string   `json:"target"`
		Stakeholders []string `json:"stakeholders"`
	}

	WebviewReady              struct{}
	OverrideAnalyzerBinaries  struct{ Path string }
	OverrideRPCServerBinaries struct{ Path string }
	PickResponse              struct {
		ID    string `json:"id"`
		Value string `json:"value"`
		// Cancelled is set when the user dismissed the pick.
		Cancelled bool `json:"cancelled,omitempty"`
	}
)

func (AddProfile) Type() string                { return TypeAddProfile }
func (DeleteProfile) Type() string             { return TypeDeleteProfile }
func (UpdateProfile) Type() string             { return TypeUpdateProfile }
func (SetActiveProfile) Type() string          { return TypeSetActiveProfile }
func (OpenProfileManager) Type() string        { return TypeOpenProfileManager }
func (ConfigureSourcesTargets) Type() string   { return TypeConfigureSourcesTargets }
func (ConfigureLabelSelector) Type() string    { return TypeConfigureLabelSelector }
func (ConfigureCustomRules) Type() string      { return TypeConfigureCustomRules }
func (OpenGenAISettings) Type() string         { return TypeOpenGenAISettings }
func (OpenURL) Type() string                   { return TypeOpenURL }
func (FindAndOpenFile) Type() string           { return TypeFindAndOpenFile }
func (OpenFile) Type() string                  { return TypeOpenFile }
func (StartServer) Type() string               { return TypeStartServer }
func (StopServer) Type() string                { return TypeStopServer }
func (RunAnalysis) Type() string               { return TypeRunAnalysis }
func (GetSolution) Type() string               { return TypeGetSolution }
func (GetSolutionWithContext) Type() string    { return TypeGetSolutionWithContext }
func (ViewFix) Type() string                   { return TypeViewFix }
func (ApplyFile) Type() string                 { return TypeApplyFile }
func (DiscardFile) Type() string               { return TypeDiscardFile }
func (WizardNextStep) Type() string            { return TypeWizardNextStep }
func (WizardPreviousStep) Type() string        { return TypeWizardPreviousStep }
func (WizardSetStep) Type() string             { return TypeWizardSetStep }
func (WizardFinish) Type() string              { return TypeWizardFinish }
func (UpdateWizardState) Type() string         { return TypeUpdateWizardState }
func (BuildQuarkusKubernetes) Type() string    { return TypeBuildQuarkusKubernetes }
func (DeployApplication) Type() string         { return TypeDeployApplication }
func (WebviewReady) Type() string              { return TypeWebviewReady }
func (OverrideAnalyzerBinaries) Type() string  { return TypeOverrideAnalyzerBinaries }
func (OverrideRPCServerBinaries) Type() string { return TypeOverrideRPCServerBinaries }
func (PickResponse) Type() string              { return TypePickResponse }

func (AddProfile) sealed()                {}
func (DeleteProfile) sealed()             {}
func (UpdateProfile) sealed()             {}
func (SetActiveProfile) sealed()          {}
func (OpenProfileManager) sealed()        {}
func (ConfigureSourcesTargets) sealed()   {}
func (ConfigureLabelSelector) sealed()    {}
func (ConfigureCustomRules) sealed()      {}
func (OpenGenAISettings) sealed()         {}
func (OpenURL) sealed()                   {}
func (FindAndOpenFile) sealed()           {}
func (OpenFile) sealed()                  {}
func (StartServer) sealed()               {}
func (StopServer) sealed()                {}
func (RunAnalysis) sealed()               {}
func (GetSolution) sealed()               {}
func (GetSolutionWithContext) sealed()    {}
func (ViewFix) sealed()                   {}
func (ApplyFile) sealed()                 {}
func (DiscardFile) sealed()               {}
func (WizardNextStep) sealed()            {}
func (WizardPreviousStep) sealed()        {}
func (WizardSetStep) sealed()             {}
func (WizardFinish) sealed()              {}
func (UpdateWizardState) sealed()         {}
func (BuildQuarkusKubernetes) sealed()    {}
func (DeployApplication) sealed()         {}
func (WebviewReady) sealed()              {}
func (OverrideAnalyzerBinaries) sealed()  {}
func (OverrideRPCServerBinaries) sealed() {}
func (PickResponse) sealed()              {}

// envelope is the wire form of an action.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a {type, payload} message into its Action.
func Decode(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	var (
		a   Action
		err error
	)
	switch env.Type {
	case TypeAddProfile:
		var v AddProfile
		err = unmarshal(env.Payload, &v.Profile)
		a = v
	case TypeDeleteProfile:
		var v DeleteProfile
		v.ProfileID, err = stringOrField(env.Payload, "profileId")
		a = v
	case TypeUpdateProfile:
		var v UpdateProfile
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeSetActiveProfile:
		var v SetActiveProfile
		v.ProfileID, err = stringOrField(env.Payload, "profileId")
		a = v
	case TypeOpenProfileManager:
		a = OpenProfileManager{}
	case TypeConfigureSourcesTargets:
		a = ConfigureSourcesTargets{}
	case TypeConfigureLabelSelector:
		a = ConfigureLabelSelector{}
	case TypeConfigureCustomRules:
		var v ConfigureCustomRules
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeOpenGenAISettings:
		a = OpenGenAISettings{}
	case TypeOpenURL:
		var v OpenURL
		v.URL, err = stringOrField(env.Payload, "url")
		a = v
	case TypeFindAndOpenFile:
		var v FindAndOpenFile
		v.FileName, err = stringOrField(env.Payload, "fileName")
		a = v
	case TypeOpenFile:
		var v OpenFile
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeStartServer:
		a = StartServer{}
	case TypeStopServer:
		a = StopServer{}
	case TypeRunAnalysis:
		a = RunAnalysis{}
	case TypeGetSolution:
		var v GetSolution
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeGetSolutionWithContext:
		var v GetSolutionWithContext
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeViewFix:
		var v ViewFix
		err = unmarshal(env.Payload, &v.Change)
		a = v
	case TypeApplyFile:
		var v ApplyFile
		err = unmarshal(env.Payload, &v.Change)
		a = v
	case TypeDiscardFile:
		var v DiscardFile
		err = unmarshal(env.Payload, &v.Change)
		a = v
	case TypeWizardNextStep:
		a = WizardNextStep{}
	case TypeWizardPreviousStep:
		a = WizardPreviousStep{}
	case TypeWizardSetStep:
		var v WizardSetStep
		var s string
		s, err = stringOrField(env.Payload, "step")
		v.Step = state.Step(s)
		a = v
	case TypeWizardFinish:
		a = WizardFinish{}
	case TypeUpdateWizardState:
		var v UpdateWizardState
		err = unmarshal(env.Payload, &v.WizardState)
		a = v
	case TypeBuildQuarkusKubernetes:
		a = BuildQuarkusKubernetes{}
	case TypeDeployApplication:
		var v DeployApplication
		err = unmarshal(env.Payload, &v)
		a = v
	case TypeWebviewReady:
		a = WebviewReady{}
	case TypeOverrideAnalyzerBinaries:
		var v OverrideAnalyzerBinaries
		v.Path, err = optionalString(env.Payload, "path")
		a = v
	case TypeOverrideRPCServerBinaries:
		var v OverrideRPCServerBinaries
		v.Path, err = optionalString(env.Payload, "path")
		a = v
	case TypePickResponse:
		var v PickResponse
		err = unmarshal(env.Payload, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return a, nil
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(payload, v)
}

// stringOrField accepts either a bare JSON string or an object carrying the
// string under field.
func stringOrField(payload json.RawMessage, field string) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("missing payload")
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", err
	}
	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("missing %q", field)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	return s, nil
}

func optionalString(payload json.RawMessage, field string) (string, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return "", nil
	}
	return stringOrField(payload, field)
}

// Encode renders a into its wire form.
func Encode(a Action) ([]byte, error) {
	var payload any
	switch v := a.(type) {
	case AddProfile:
		payload = v.Profile
	case DeleteProfile:
		payload = v.ProfileID
	case SetActiveProfile:
		payload = v.ProfileID
	case OpenURL:
		payload = v.URL
	case FindAndOpenFile:
		payload = v.FileName
	case ViewFix:
		payload = v.Change
	case ApplyFile:
		payload = v.Change
	case DiscardFile:
		payload = v.Change
	case WizardSetStep:
		payload = v.Step
	case UpdateWizardState:
		payload = v.WizardState
	case OverrideAnalyzerBinaries:
		if v.Path != "" {
			payload = map[string]string{"path": v.Path}
		}
	case OverrideRPCServerBinaries:
		if v.Path != "" {
			payload = map[string]string{"path": v.Path}
		}
	case OpenProfileManager, ConfigureSourcesTargets, ConfigureLabelSelector, OpenGenAISettings,
		StartServer, StopServer, RunAnalysis, WizardNextStep, WizardPreviousStep, WizardFinish,
		BuildQuarkusKubernetes, WebviewReady:
	default:
		payload = v
	}

	env := map[string]any{"type": a.Type()}
	if payload != nil {
		env["payload"] = payload
	}
	return json.Marshal(env)
}
