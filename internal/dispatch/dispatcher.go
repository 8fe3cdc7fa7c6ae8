// Package dispatch turns view actions into profile store calls, host
// commands and state mutations.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/julianshen/aksmigrate/internal/analysisconfig"
	"github.com/julianshen/aksmigrate/internal/build"
	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/wizard"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// User-input rejections. Handlers report them through the Window and leave
// state untouched.
var (
	ErrDuplicateProfile = errors.New("duplicate profile")
	ErrReadOnlyProfile  = errors.New("profile is read-only")
	ErrUnknownProfile   = errors.New("profile not found")
	ErrInvalidProfile   = errors.New("invalid profile")

	// ErrDuplicateProfileID matches ErrDuplicateProfile too.
	ErrDuplicateProfileID = fmt.Errorf("%w id", ErrDuplicateProfile)
)

// Window shows messages to the user and asks for choices.
type Window interface {
	ShowError(msg string)
	ShowWarning(msg string)
	ShowInfo(msg string)
	// Pick asks the user to choose one of items. ok is false when the user
	// dismissed the pick.
	Pick(ctx context.Context, title string, items []string) (choice string, ok bool, err error)
}

// PickResolver is implemented by windows whose picks are answered through
// PICK_RESPONSE actions.
type PickResolver interface {
	ResolvePick(id, value string, cancelled bool) bool
}

// Builder runs the containerization build.
type Builder interface {
	Run(ctx context.Context, root string, progress func(int)) (build.Result, error)
}

// FileFinder searches the workspace by file name.
type FileFinder interface {
	FindFiles(ctx context.Context, name string, limit int) ([]string, error)
	Rel(path string) string
}

// FileOpener opens a file at a line.
type FileOpener interface {
	Open(ctx context.Context, path string, line int) error
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Container *state.Container
	Profiles  *profile.Store
	// Workspace persists the active profile id.
	Workspace profile.KeyValue
	// Bundled overrides the compiled-in profiles.
	Bundled  []profile.AnalysisProfile
	Commands *commands.Registry
	Window   Window
	Wizard   wizard.Machine
	Builder  Builder
	Files    FileFinder
	Editor   FileOpener
	OpenURL  func(string) error
	// ManifestDir is where deploy plans for non-Quarkus projects read
	// manifests from, relative to the workspace root.
	ManifestDir string
	Log         zerolog.Logger
}

// Dispatcher handles actions. Long-running handlers run in the background
// so other actions are not blocked while they are suspended.
type Dispatcher struct {
	deps    Deps
	log     zerolog.Logger
	bundled []profile.AnalysisProfile

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	bundled := deps.Bundled
	if bundled == nil {
		bundled = profile.Bundled()
	}
	if deps.Wizard.Steps() == nil {
		deps.Wizard = wizard.New(nil)
	}
	if deps.ManifestDir == "" {
		deps.ManifestDir = build.DefaultManifestDir
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		deps:    deps,
		log:     deps.Log,
		bundled: bundled,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch decodes a raw message and handles it. Malformed and unknown
// messages are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	a, err := Decode(raw)
	if err != nil {
		d.log.Warn().Err(err).Msg("dropping message from view")
		return
	}
	_ = d.Handle(ctx, a)
}

// Handle runs the handler for a. The returned error is the synchronous
// outcome; it has already been reported to the user.
func (d *Dispatcher) Handle(ctx context.Context, a Action) error {
	d.log.Debug().Str("action", a.Type()).Msg("handling action")

	switch a := a.(type) {
	case AddProfile:
		return d.addProfile(a.Profile)
	case DeleteProfile:
		return d.deleteProfile(a.ProfileID)
	case UpdateProfile:
		return d.updateProfile(a.OriginalID, a.UpdatedProfile)
	case SetActiveProfile:
		return d.setActiveProfile(a.ProfileID)

	case OpenProfileManager:
		d.fire(commands.OpenProfilesPanel)
	case ConfigureSourcesTargets:
		d.fire(commands.ConfigureSourcesTargets)
	case ConfigureLabelSelector:
		d.fire(commands.ConfigureLabelSelector)
	case ConfigureCustomRules:
		d.fire(commands.ConfigureCustomRules, a.ProfileID)
	case OpenGenAISettings:
		d.fire(commands.ModelProviderSettingsOpen)
	case OverrideAnalyzerBinaries:
		d.fire(commands.OverrideAnalyzerBinaries, a.Path)
	case OverrideRPCServerBinaries:
		d.fire(commands.OverrideRPCServerBinaries, a.Path)
	case OpenURL:
		return d.openURL(a.URL)
	case OpenFile:
		return d.openFile(ctx, a.File, a.Line)
	case FindAndOpenFile:
		d.async(a.Type(), func(ctx context.Context) { d.findAndOpenFile(ctx, a.FileName) })

	case StartServer:
		d.fire(commands.StartServer)
	case StopServer:
		d.fire(commands.StopServer)
	case RunAnalysis:
		d.fire(commands.RunAnalysis)

	case GetSolution:
		d.fire(commands.GetSolution, a.Incidents, a.Effort)
	case GetSolutionWithContext:
		d.fire(commands.GetSolutionWithContext, a.Incident)
	case ViewFix:
		d.fire(commands.ViewFix, a.Change)
	case ApplyFile:
		return d.applyFile(ctx, a.Change)
	case DiscardFile:
		return d.discardFile(ctx, a.Change)

	case WizardNextStep:
		d.nextStep()
	case WizardPreviousStep:
		d.Mutate(func(draft *state.ExtensionData) { d.deps.Wizard.Previous(draft) })
	case WizardSetStep:
		return d.setStep(a.Step)
	case WizardFinish:
		d.Mutate(func(draft *state.ExtensionData) { d.deps.Wizard.Finish(draft) })
		d.fire(commands.CloseWizard)
	case UpdateWizardState:
		d.updateWizardState(a.WizardState)

	case BuildQuarkusKubernetes:
		d.async(a.Type(), d.buildQuarkus)
	case DeployApplication:
		return d.deployApplication(a.Target, a.Stakeholders)

	case WebviewReady:
		d.log.Info().Msg("view is ready")
	case PickResponse:
		d.resolvePick(a)

	default:
		d.log.Warn().Str("action", a.Type()).Msg("no handler for action")
	}
	return nil
}

// Mutate commits recipe followed by a refresh of the wizard navigation
// flags.
func (d *Dispatcher) Mutate(recipe func(draft *state.ExtensionData)) *state.ExtensionData {
	return d.deps.Container.Mutate(func(draft *state.ExtensionData) {
		recipe(draft)
		wizard.Refresh(draft, d.deps.Wizard)
	})
}

// Wait blocks until every background handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels background handlers and waits for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

// async runs fn in the background with panic recovery.
func (d *Dispatcher) async(name string, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn().Str("action", name).Msg("dispatcher closed, dropping action")
		return
	}
	d.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(func() { fn(d.ctx) })
		if r := pc.Recovered(); r != nil {
			d.log.Error().Str("action", name).Str("panic", fmt.Sprint(r.Value)).Str("stack", string(r.Stack)).Msg("handler panicked")
			d.deps.Window.ShowError(fmt.Sprintf("Internal error while handling %s.", name))
		}
	})
}

// fire executes a host command without waiting for it.
func (d *Dispatcher) fire(id string, args ...any) {
	d.async(id, func(ctx context.Context) {
		if err := d.deps.Commands.Execute(ctx, id, args...); err != nil {
			d.log.Warn().Err(err).Str("command", id).Msg("command failed")
			d.deps.Window.ShowError(fmt.Sprintf("Command %s failed: %v", id, err))
		}
	})
}

func (d *Dispatcher) merge(user []profile.AnalysisProfile) []profile.AnalysisProfile {
	return profile.Combine(d.bundled, user)
}

// applyProfiles re-derives everything that depends on the profile list and
// the active id.
func applyProfiles(draft *state.ExtensionData) {
	analysisconfig.Apply(draft)
	draft.WizardState.StepData.Profile.SelectedProfileID = draft.ActiveProfileID
	draft.WizardState.StepData.Profile.ProfilesLoaded = true
}

func (d *Dispatcher) saveActiveID(id string) {
	if d.deps.Workspace == nil {
		return
	}
	if err := profile.SaveActiveID(d.deps.Workspace, id); err != nil {
		d.log.Warn().Err(err).Str("profile", id).Msg("persisting active profile")
	}
}

func (d *Dispatcher) addProfile(p profile.AnalysisProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		d.deps.Window.ShowError("A profile name is required.")
		return ErrInvalidProfile
	}
	if p.ID == "" {
		p.ID = profile.NewID()
	}
	p.ReadOnly = false

	user, err := d.deps.Profiles.Update(func(user []profile.AnalysisProfile) ([]profile.AnalysisProfile, error) {
		if _, dup := profile.FindByName(user, p.Name); dup {
			return nil, fmt.Errorf("%w name %q", ErrDuplicateProfile, p.Name)
		}
		if _, dup := profile.Find(d.merge(user), p.ID); dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateProfileID, p.ID)
		}
		return append(user, p), nil
	})
	if errors.Is(err, ErrDuplicateProfile) {
		d.deps.Window.ShowError(duplicateMessage(err, p))
		return err
	}
	if err != nil {
		d.log.Error().Err(err).Msg("saving profiles")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to save profile: %v", err))
		return err
	}

	d.saveActiveID(p.ID)
	all := d.merge(user)
	d.Mutate(func(draft *state.ExtensionData) {
		draft.Profiles = all
		draft.ActiveProfileID = p.ID
		applyProfiles(draft)
	})
	return nil
}

func (d *Dispatcher) deleteProfile(id string) error {
	user, err := d.deps.Profiles.Update(func(user []profile.AnalysisProfile) ([]profile.AnalysisProfile, error) {
		out := make([]profile.AnalysisProfile, 0, len(user))
		for _, p := range user {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out, nil
	})
	if err != nil {
		d.log.Error().Err(err).Msg("saving profiles")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to delete profile: %v", err))
		return err
	}

	all := d.merge(user)
	var reassigned *string
	d.Mutate(func(draft *state.ExtensionData) {
		draft.Profiles = all
		if draft.ActiveProfileID == id {
			next := ""
			if len(all) > 0 {
				next = all[0].ID
			}
			draft.ActiveProfileID = next
			reassigned = &next
		}
		applyProfiles(draft)
	})
	if reassigned != nil {
		d.saveActiveID(*reassigned)
	}
	return nil
}

func (d *Dispatcher) updateProfile(originalID string, updated profile.AnalysisProfile) error {
	current, ok := profile.Find(d.merge(d.deps.Profiles.Load()), originalID)
	if !ok {
		d.deps.Window.ShowError("Cannot update profile. Profile not found.")
		return ErrUnknownProfile
	}
	if current.ReadOnly {
		d.deps.Window.ShowWarning("Built-in profiles cannot be edited. Copy it to a new profile first.")
		return ErrReadOnlyProfile
	}
	if updated.ID == "" {
		updated.ID = originalID
	}
	if strings.TrimSpace(updated.Name) == "" {
		updated.Name = current.Name
	}
	updated.ReadOnly = false

	user, err := d.deps.Profiles.Update(func(user []profile.AnalysisProfile) ([]profile.AnalysisProfile, error) {
		out := make([]profile.AnalysisProfile, 0, len(user))
		found := false
		for _, p := range user {
			if p.ID == originalID {
				out = append(out, updated)
				found = true
				continue
			}
			if p.Name == updated.Name {
				return nil, fmt.Errorf("%w name %q", ErrDuplicateProfile, updated.Name)
			}
			if p.ID == updated.ID {
				return nil, fmt.Errorf("%w %q", ErrDuplicateProfileID, updated.ID)
			}
			out = append(out, p)
		}
		if !found {
			return nil, ErrUnknownProfile
		}
		if _, clash := profile.Find(d.bundled, updated.ID); clash {
			return nil, fmt.Errorf("%w %q", ErrDuplicateProfileID, updated.ID)
		}
		return out, nil
	})
	if errors.Is(err, ErrUnknownProfile) {
		d.deps.Window.ShowError("Cannot update profile. Profile not found.")
		return err
	}
	if errors.Is(err, ErrDuplicateProfile) {
		d.deps.Window.ShowError(duplicateMessage(err, updated))
		return err
	}
	if err != nil {
		d.log.Error().Err(err).Msg("saving profiles")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to update profile: %v", err))
		return err
	}

	all := d.merge(user)
	renamed := false
	d.Mutate(func(draft *state.ExtensionData) {
		draft.Profiles = all
		if draft.ActiveProfileID == originalID {
			draft.ActiveProfileID = updated.ID
			renamed = updated.ID != originalID
		}
		applyProfiles(draft)
	})
	if renamed {
		d.saveActiveID(updated.ID)
	}
	return nil
}

// duplicateMessage words a duplicate rejection for the user.
func duplicateMessage(err error, p profile.AnalysisProfile) string {
	if errors.Is(err, ErrDuplicateProfileID) {
		return fmt.Sprintf("A profile with id %q already exists.", p.ID)
	}
	return fmt.Sprintf("A profile named %q already exists.", p.Name)
}

func (d *Dispatcher) setActiveProfile(id string) error {
	all := d.merge(d.deps.Profiles.Load())
	if _, ok := profile.Find(all, id); !ok {
		d.deps.Window.ShowError("Cannot set active profile. Profile not found.")
		return ErrUnknownProfile
	}

	d.saveActiveID(id)
	d.Mutate(func(draft *state.ExtensionData) {
		draft.Profiles = all
		draft.ActiveProfileID = id
		applyProfiles(draft)
	})
	return nil
}

func (d *Dispatcher) nextStep() {
	finished := false
	d.Mutate(func(draft *state.ExtensionData) {
		finished = d.deps.Wizard.Next(draft)
	})
	if finished {
		d.fire(commands.CloseWizard)
	}
}

func (d *Dispatcher) setStep(step state.Step) error {
	_, err := d.deps.Container.TryMutate(func(draft *state.ExtensionData) error {
		if err := d.deps.Wizard.SetStep(draft, step); err != nil {
			return err
		}
		wizard.Refresh(draft, d.deps.Wizard)
		return nil
	})
	if err != nil {
		d.log.Warn().Err(err).Str("step", string(step)).Msg("ignoring step change")
	}
	return err
}

// updateWizardState takes the containerization and deploy choices from the
// view. Fields the build handler owns keep their current values.
func (d *Dispatcher) updateWizardState(ws state.WizardState) {
	in := ws.StepData.Containerization
	dep := ws.StepData.Deploy
	dep.SelectedStakeholders = append([]string{}, dep.SelectedStakeholders...)
	dep.Plan = append([]string(nil), dep.Plan...)

	d.Mutate(func(draft *state.ExtensionData) {
		c := &draft.WizardState.StepData.Containerization
		c.DockerfileGenerated = in.DockerfileGenerated
		c.K8sConfigsGenerated = in.K8sConfigsGenerated
		c.DeploymentReady = in.DeploymentReady
		draft.WizardState.StepData.Deploy = dep
	})
}

func (d *Dispatcher) resolvePick(a PickResponse) {
	r, ok := d.deps.Window.(PickResolver)
	if !ok || !r.ResolvePick(a.ID, a.Value, a.Cancelled) {
		d.log.Warn().Str("pick", a.ID).Msg("no pending pick for response")
	}
}
