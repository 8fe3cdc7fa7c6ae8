package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/julianshen/aksmigrate/internal/build"
	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu       sync.Mutex
	errors   []string
	warnings []string
	infos    []string

	pickItems []string
	pickValue string
	pickOK    bool
}

func (w *fakeWindow) ShowError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors = append(w.errors, msg)
}

func (w *fakeWindow) ShowWarning(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warnings = append(w.warnings, msg)
}

func (w *fakeWindow) ShowInfo(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.infos = append(w.infos, msg)
}

func (w *fakeWindow) Pick(_ context.Context, _ string, items []string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pickItems = items
	return w.pickValue, w.pickOK, nil
}

func (w *fakeWindow) snapshot() (errs, warns, infos []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.errors...), append([]string(nil), w.warnings...), append([]string(nil), w.infos...)
}

type memKV struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memKV) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type fakeFinder struct {
	found []string
}

func (f *fakeFinder) FindFiles(context.Context, string, int) ([]string, error) { return f.found, nil }
func (f *fakeFinder) Rel(path string) string {
	return filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *fakeOpener) Open(_ context.Context, path string, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	return o.err
}

type fakeBuilder struct {
	res state.BuildOutcome
	err error
}

func (b *fakeBuilder) Run(_ context.Context, _ string, progress func(int)) (build.Result, error) {
	progress(50)
	if b.err != nil {
		return build.Result{}, b.err
	}
	res := build.Result{Outcome: b.res}
	if b.res == state.BuildSuccessWithManifests {
		res.Manifests = []string{"target/kubernetes/kubernetes.yml"}
	}
	return res, nil
}

var builtin = profile.AnalysisProfile{
	ID:              "p1",
	Name:            "Built-in",
	LabelSelector:   "(konveyor.io/target=azure-aks)",
	UseDefaultRules: true,
	ReadOnly:        true,
}

type harness struct {
	d       *Dispatcher
	c       *state.Container
	win     *fakeWindow
	kv      *memKV
	store   *profile.Store
	cmds    *commands.Registry
	opener  *fakeOpener
	finder  *fakeFinder
	builder *fakeBuilder
	root    string
}

func newHarness(t *testing.T, bundled ...profile.AnalysisProfile) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		c:       state.NewContainer(state.Default(root)),
		win:     &fakeWindow{},
		kv:      &memKV{values: map[string]string{}},
		store:   profile.NewStore(filepath.Join(root, ".aksmigrate"), zerolog.Nop()),
		cmds:    commands.NewRegistry(),
		opener:  &fakeOpener{},
		finder:  &fakeFinder{},
		builder: &fakeBuilder{res: state.BuildSuccessWithManifests},
		root:    root,
	}
	if bundled == nil {
		bundled = []profile.AnalysisProfile{}
	}
	h.d = New(Deps{
		Container: h.c,
		Profiles:  h.store,
		Workspace: h.kv,
		Bundled:   bundled,
		Commands:  h.cmds,
		Window:    h.win,
		Builder:   h.builder,
		Files:     h.finder,
		Editor:    h.opener,
		Log:       zerolog.Nop(),
	})
	t.Cleanup(h.d.Close)
	return h
}

func (h *harness) dispatch(t *testing.T, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	h.d.Dispatch(context.Background(), raw)
	h.d.Wait()
}

func configErrorTypes(d *state.ExtensionData) []state.ConfigErrorType {
	var out []state.ConfigErrorType
	for _, e := range d.ConfigErrors {
		out = append(out, e.Type)
	}
	return out
}

func TestDecode(t *testing.T) {
	a, err := Decode([]byte(`{"type":"SET_ACTIVE_PROFILE","payload":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, SetActiveProfile{ProfileID: "p1"}, a)

	a, err = Decode([]byte(`{"type":"DELETE_PROFILE","payload":{"profileId":"p2"}}`))
	require.NoError(t, err)
	assert.Equal(t, DeleteProfile{ProfileID: "p2"}, a)

	a, err = Decode([]byte(`{"type":"UPDATE_PROFILE","payload":{"originalId":"a","updatedProfile":{"id":"b","name":"B"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", a.(UpdateProfile).OriginalID)
	assert.Equal(t, "B", a.(UpdateProfile).UpdatedProfile.Name)

	a, err = Decode([]byte(`{"type":"OVERRIDE_ANALYZER_BINARIES"}`))
	require.NoError(t, err)
	assert.Equal(t, OverrideAnalyzerBinaries{}, a)

	a, err = Decode([]byte(`{"type":"WIZARD_NEXT_STEP"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeWizardNextStep, a.Type())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"LAUNCH_ROCKET"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"ADD_PROFILE"}`))
	assert.ErrorContains(t, err, "missing payload")

	_, err = Decode([]byte(`{"type":"OPEN_URL","payload":{"link":"x"}}`))
	assert.ErrorContains(t, err, `missing "url"`)
}

func TestEncodeDecode(t *testing.T) {
	in := DeployApplication{Target: "staging", Stakeholders: []string{"developer"}}
	raw, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDispatch_DropsUnknownAction(t *testing.T) {
	h := newHarness(t)
	before := h.c.State()
	h.d.Dispatch(context.Background(), []byte(`{"type":"LAUNCH_ROCKET"}`))
	assert.Same(t, before, h.c.State())
	errs, warns, _ := h.win.snapshot()
	assert.Empty(t, errs)
	assert.Empty(t, warns)
}

func TestActiveProfileLifecycle(t *testing.T) {
	h := newHarness(t, builtin)

	h.dispatch(t, TypeSetActiveProfile, "p1")
	s := h.c.State()
	assert.Equal(t, "p1", s.ActiveProfileID)
	assert.True(t, s.AnalysisConfig.LabelSelectorValid)
	assert.True(t, s.AnalysisConfig.CustomRulesConfigured)
	assert.NotContains(t, configErrorTypes(s), state.ErrNoActiveProfile)
	assert.Equal(t, "p1", s.WizardState.StepData.Profile.SelectedProfileID)
	stored, err := profile.LoadActiveID(h.kv)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored)

	h.dispatch(t, TypeDeleteProfile, "nope")
	assert.Equal(t, "p1", h.c.State().ActiveProfileID)

	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "Mine", LabelSelector: "x"})
	s = h.c.State()
	assert.Equal(t, "u1", s.ActiveProfileID)
	require.Len(t, s.Profiles, 2)
	assert.Equal(t, "p1", s.Profiles[0].ID)
	assert.Contains(t, configErrorTypes(s), state.ErrNoCustomRules)

	h.dispatch(t, TypeDeleteProfile, "u1")
	s = h.c.State()
	assert.Equal(t, "p1", s.ActiveProfileID)
	assert.Len(t, s.Profiles, 1)
	assert.Empty(t, h.store.Load())
}

func TestDeleteLastProfileClearsActive(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "Only", LabelSelector: "x", UseDefaultRules: true})
	require.Equal(t, "u1", h.c.State().ActiveProfileID)

	h.dispatch(t, TypeDeleteProfile, "u1")
	s := h.c.State()
	assert.Equal(t, "", s.ActiveProfileID)
	assert.Empty(t, s.Profiles)
	assert.Contains(t, configErrorTypes(s), state.ErrNoActiveProfile)
}

func TestAddProfile_DuplicateNameRejected(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "Same", UseDefaultRules: true})
	h.dispatch(t, TypeSetActiveProfile, "u1")

	err := h.d.Handle(context.Background(), AddProfile{Profile: profile.AnalysisProfile{ID: "u2", Name: "Same"}})
	assert.ErrorIs(t, err, ErrDuplicateProfile)
	s := h.c.State()
	assert.Len(t, s.Profiles, 1)
	assert.Equal(t, "u1", s.ActiveProfileID)
	errs, _, _ := h.win.snapshot()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "already exists")
}

func TestAddProfile_RequiresName(t *testing.T) {
	h := newHarness(t)
	err := h.d.Handle(context.Background(), AddProfile{Profile: profile.AnalysisProfile{Name: "  "}})
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.Empty(t, h.store.Load())
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t, builtin)
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "Mine"})

	err := h.d.Handle(context.Background(), UpdateProfile{
		OriginalID:     "u1",
		UpdatedProfile: profile.AnalysisProfile{ID: "u1b", Name: "Renamed", LabelSelector: "sel", UseDefaultRules: true},
	})
	require.NoError(t, err)
	s := h.c.State()
	assert.Equal(t, "u1b", s.ActiveProfileID)
	p, ok := s.ActiveProfile()
	require.True(t, ok)
	assert.Equal(t, "Renamed", p.Name)
	assert.Empty(t, s.ConfigErrors)
	stored, _ := profile.LoadActiveID(h.kv)
	assert.Equal(t, "u1b", stored)

	err = h.d.Handle(context.Background(), UpdateProfile{OriginalID: "p1", UpdatedProfile: profile.AnalysisProfile{Name: "Hack"}})
	assert.ErrorIs(t, err, ErrReadOnlyProfile)
	_, warns, _ := h.win.snapshot()
	assert.Contains(t, warns, "Built-in profiles cannot be edited. Copy it to a new profile first.")

	err = h.d.Handle(context.Background(), UpdateProfile{OriginalID: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestUpdateProfile_RejectsBuiltInID(t *testing.T) {
	h := newHarness(t, builtin)
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "Mine"})

	err := h.d.Handle(context.Background(), UpdateProfile{
		OriginalID:     "u1",
		UpdatedProfile: profile.AnalysisProfile{ID: builtin.ID, Name: "Mine"},
	})
	assert.ErrorIs(t, err, ErrDuplicateProfile)
	assert.ErrorIs(t, err, ErrDuplicateProfileID)

	s := h.c.State()
	p, ok := profile.Find(s.Profiles, builtin.ID)
	require.True(t, ok)
	assert.True(t, p.ReadOnly)
	assert.Equal(t, "u1", h.store.Load()[0].ID)
	errs, _, _ := h.win.snapshot()
	require.NotEmpty(t, errs)
	assert.Equal(t, `A profile with id "p1" already exists.`, errs[len(errs)-1])
}

func TestUpdateProfile_RejectsDuplicates(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u1", Name: "First"})
	h.dispatch(t, TypeAddProfile, profile.AnalysisProfile{ID: "u2", Name: "Second"})

	err := h.d.Handle(context.Background(), UpdateProfile{
		OriginalID:     "u2",
		UpdatedProfile: profile.AnalysisProfile{ID: "u2", Name: "First"},
	})
	assert.ErrorIs(t, err, ErrDuplicateProfile)
	assert.NotErrorIs(t, err, ErrDuplicateProfileID)
	errs, _, _ := h.win.snapshot()
	require.NotEmpty(t, errs)
	assert.Equal(t, `A profile named "First" already exists.`, errs[len(errs)-1])

	err = h.d.Handle(context.Background(), UpdateProfile{
		OriginalID:     "u2",
		UpdatedProfile: profile.AnalysisProfile{ID: "u1", Name: "Second"},
	})
	assert.ErrorIs(t, err, ErrDuplicateProfileID)

	stored := h.store.Load()
	require.Len(t, stored, 2)
	assert.Equal(t, "First", stored[0].Name)
	assert.Equal(t, "u2", stored[1].ID)
	assert.Equal(t, "Second", stored[1].Name)

	// Keeping its own name and id is not a clash.
	err = h.d.Handle(context.Background(), UpdateProfile{
		OriginalID:     "u2",
		UpdatedProfile: profile.AnalysisProfile{ID: "u2", Name: "Second", LabelSelector: "sel"},
	})
	require.NoError(t, err)
}

func TestAddProfile_RejectsBuiltInID(t *testing.T) {
	h := newHarness(t, builtin)
	err := h.d.Handle(context.Background(), AddProfile{Profile: profile.AnalysisProfile{ID: builtin.ID, Name: "Other"}})
	assert.ErrorIs(t, err, ErrDuplicateProfileID)
	assert.Empty(t, h.store.Load())
}

func TestSetActiveProfile_Unknown(t *testing.T) {
	h := newHarness(t, builtin)
	err := h.d.Handle(context.Background(), SetActiveProfile{ProfileID: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownProfile)
	assert.Equal(t, "", h.c.State().ActiveProfileID)
	errs, _, _ := h.win.snapshot()
	assert.Equal(t, []string{"Cannot set active profile. Profile not found."}, errs)
}

func TestWizardNavigation(t *testing.T) {
	h := newHarness(t)
	var closed int
	require.NoError(t, h.cmds.RegisterFunc(commands.CloseWizard, "Close", func(context.Context, ...any) error {
		closed++
		return nil
	}))

	h.dispatch(t, TypeWizardNextStep, nil)
	ws := h.c.State().WizardState
	assert.Equal(t, state.StepProfile, ws.CurrentStep)
	assert.True(t, ws.CanNavigateBack)
	assert.False(t, ws.CanNavigateForward)

	h.dispatch(t, TypeWizardPreviousStep, nil)
	assert.Equal(t, state.StepSetup, h.c.State().WizardState.CurrentStep)

	h.dispatch(t, TypeWizardSetStep, "deploy")
	assert.Equal(t, state.StepDeploy, h.c.State().WizardState.CurrentStep)

	before := h.c.State()
	err := h.d.Handle(context.Background(), WizardSetStep{Step: "moon"})
	assert.Error(t, err)
	assert.Same(t, before, h.c.State())

	h.dispatch(t, TypeWizardNextStep, nil)
	assert.Equal(t, state.StepSetup, h.c.State().WizardState.CurrentStep)
	assert.Empty(t, h.c.State().WizardState.CompletedSteps)
	assert.Equal(t, 1, closed)

	h.dispatch(t, TypeWizardFinish, nil)
	assert.Equal(t, 2, closed)
}

func TestUpdateWizardState_TakesViewOwnedSteps(t *testing.T) {
	h := newHarness(t)
	ws := state.DefaultWizardState()
	ws.CurrentStep = state.StepDeploy
	ws.StepData.Analysis.AnalysisCompleted = true
	ws.StepData.Containerization.DockerfileGenerated = true
	ws.StepData.Deploy.SelectedStakeholders = []string{"developer"}

	h.dispatch(t, TypeUpdateWizardState, ws)
	got := h.c.State().WizardState
	assert.Equal(t, state.StepSetup, got.CurrentStep)
	assert.False(t, got.StepData.Analysis.AnalysisCompleted)
	assert.True(t, got.StepData.Containerization.DockerfileGenerated)
	assert.Equal(t, []string{"developer"}, got.StepData.Deploy.SelectedStakeholders)
}

func TestUpdateWizardState_KeepsBuildFields(t *testing.T) {
	h := newHarness(t)
	h.c.Mutate(func(d *state.ExtensionData) {
		c := &d.WizardState.StepData.Containerization
		c.IsQuarkusProject = true
		c.HasKubernetesExtension = true
		c.BuildInProgress = true
		c.BuildProgress = 40
		c.BuildOutcome = state.BuildFailure
		c.Manifests = []string{"/ws/target/kubernetes/kubernetes.yml"}
		c.BuildError = "exit status 1"
	})

	// A view that rendered before the build started sends stale values.
	ws := state.DefaultWizardState()
	ws.StepData.Containerization.K8sConfigsGenerated = true
	h.dispatch(t, TypeUpdateWizardState, ws)

	c := h.c.State().WizardState.StepData.Containerization
	assert.True(t, c.K8sConfigsGenerated)
	assert.True(t, c.IsQuarkusProject)
	assert.True(t, c.HasKubernetesExtension)
	assert.True(t, c.BuildInProgress)
	assert.Equal(t, 40, c.BuildProgress)
	assert.Equal(t, state.BuildFailure, c.BuildOutcome)
	assert.Equal(t, []string{"/ws/target/kubernetes/kubernetes.yml"}, c.Manifests)
	assert.Equal(t, "exit status 1", c.BuildError)
}

func TestApplyFile_ResolvesScopedIncidents(t *testing.T) {
	h := newHarness(t)
	line := 4
	inc := state.EnhancedIncident{Incident: state.Incident{URI: "file:///src/A.java", LineNumber: &line}, ViolationID: "v1"}
	other := state.EnhancedIncident{Incident: state.Incident{URI: "file:///src/B.java"}, ViolationID: "v1"}
	change := state.LocalChange{OriginalURI: "file:///src/A.java", ModifiedURI: "file:///tmp/A.java", State: state.ChangePending}
	h.c.Mutate(func(d *state.ExtensionData) {
		d.EnhancedIncidents = []state.EnhancedIncident{inc, other}
		d.SolutionScope = &state.Scope{Incidents: []state.EnhancedIncident{inc, other}}
		d.LocalChanges = []state.LocalChange{change}
		d.WizardState.CurrentStep = state.StepResolution
	})

	var got []any
	require.NoError(t, h.cmds.RegisterFunc(commands.ApplyFile, "Apply", func(_ context.Context, args ...any) error {
		got = args
		return nil
	}))

	h.dispatch(t, TypeApplyFile, change)
	s := h.c.State()
	assert.Equal(t, []any{change}, got)
	assert.Equal(t, state.ChangeApplied, s.LocalChanges[0].State)
	assert.True(t, s.EnhancedIncidents[0].Resolved)
	assert.False(t, s.EnhancedIncidents[1].Resolved)
	assert.True(t, s.WizardState.StepData.Resolution.SolutionApplied)
	assert.True(t, s.WizardState.CanNavigateForward)
}

func TestApplyFile_CommandFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cmds.RegisterFunc(commands.ApplyFile, "Apply", func(context.Context, ...any) error {
		return errors.New("disk full")
	}))
	before := h.c.State()

	err := h.d.Handle(context.Background(), ApplyFile{Change: state.LocalChange{OriginalURI: "file:///a"}})
	assert.Error(t, err)
	assert.Same(t, before, h.c.State())
	errs, _, _ := h.win.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "disk full")
}

func TestDiscardFile(t *testing.T) {
	h := newHarness(t)
	change := state.LocalChange{OriginalURI: "file:///a", ModifiedURI: "file:///b", State: state.ChangePending}
	h.c.Mutate(func(d *state.ExtensionData) { d.LocalChanges = []state.LocalChange{change} })
	require.NoError(t, h.cmds.RegisterFunc(commands.DiscardFile, "Discard", func(context.Context, ...any) error { return nil }))

	require.NoError(t, h.d.Handle(context.Background(), DiscardFile{Change: change}))
	assert.Equal(t, state.ChangeDiscarded, h.c.State().LocalChanges[0].State)
}

func TestFireReportsCommandErrors(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, TypeRunAnalysis, nil)
	errs, _, _ := h.win.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "command not registered")
}

func TestConfigureCustomRulesPassesProfile(t *testing.T) {
	h := newHarness(t)
	var got []any
	require.NoError(t, h.cmds.RegisterFunc(commands.ConfigureCustomRules, "Rules", func(_ context.Context, args ...any) error {
		got = args
		return nil
	}))
	h.dispatch(t, TypeConfigureCustomRules, map[string]string{"profileId": "u9"})
	assert.Equal(t, []any{"u9"}, got)
}

func TestHandlerPanicIsReported(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cmds.RegisterFunc(commands.StartServer, "Start", func(context.Context, ...any) error {
		panic("boom")
	}))
	h.dispatch(t, TypeStartServer, nil)
	errs, _, _ := h.win.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Internal error")
}

func TestOpenFileAndURL(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.d.Handle(context.Background(), OpenFile{File: "/src/A.java", Line: 3}))
	assert.Equal(t, []string{"/src/A.java"}, h.opener.opened)

	h.opener.err = errors.New("no editor")
	assert.Error(t, h.d.Handle(context.Background(), OpenFile{File: "/x"}))

	var opened string
	h.d.deps.OpenURL = func(u string) error { opened = u; return nil }
	require.NoError(t, h.d.Handle(context.Background(), OpenURL{URL: "https://example.com"}))
	assert.Equal(t, "https://example.com", opened)

	errs, _, _ := h.win.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Failed to open file")
}

func TestFindAndOpenFile(t *testing.T) {
	h := newHarness(t)

	h.dispatch(t, TypeFindAndOpenFile, "pom.xml")
	_, warns, _ := h.win.snapshot()
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "pom.xml")

	h.finder.found = []string{"/ws/pom.xml"}
	h.dispatch(t, TypeFindAndOpenFile, "pom.xml")
	assert.Equal(t, []string{"/ws/pom.xml"}, h.opener.opened)

	h.finder.found = []string{"/ws/a/pom.xml", "/ws/b/pom.xml"}
	h.win.pickValue, h.win.pickOK = "b/pom.xml", true
	h.dispatch(t, TypeFindAndOpenFile, "pom.xml")
	assert.Equal(t, []string{"a/pom.xml", "b/pom.xml"}, h.win.pickItems)
	assert.Equal(t, []string{"/ws/pom.xml", "/ws/b/pom.xml"}, h.opener.opened)

	h.win.pickOK = false
	h.dispatch(t, TypeFindAndOpenFile, "pom.xml")
	assert.Len(t, h.opener.opened, 2)
}

func writePom(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pom.xml"), []byte(content), 0o644))
}

func TestBuildQuarkus(t *testing.T) {
	h := newHarness(t)
	writePom(t, h.root, "<groupId>io.quarkus</groupId><artifactId>quarkus-kubernetes</artifactId>")
	h.c.Mutate(func(d *state.ExtensionData) { d.WizardState.CurrentStep = state.StepContainerization })

	var progress []int
	unsub := h.c.Subscribe(func(d *state.ExtensionData) {
		progress = append(progress, d.WizardState.StepData.Containerization.BuildProgress)
	})
	defer unsub()

	h.dispatch(t, TypeBuildQuarkusKubernetes, nil)
	c := h.c.State().WizardState.StepData.Containerization
	assert.True(t, c.IsQuarkusProject)
	assert.True(t, c.HasKubernetesExtension)
	assert.False(t, c.BuildInProgress)
	assert.Equal(t, state.BuildSuccessWithManifests, c.BuildOutcome)
	assert.True(t, c.K8sConfigsGenerated)
	assert.True(t, c.DeploymentReady)
	assert.True(t, h.c.State().WizardState.CanNavigateForward)
	assert.Equal(t, []int{0, 50, 100}, progress)

	_, _, infos := h.win.snapshot()
	require.Len(t, infos, 1)
	assert.Contains(t, infos[0], "1 Kubernetes manifest")
}

func TestBuildQuarkus_Failure(t *testing.T) {
	h := newHarness(t)
	writePom(t, h.root, "io.quarkus")
	h.builder.err = errors.New("mvn missing")

	h.dispatch(t, TypeBuildQuarkusKubernetes, nil)
	c := h.c.State().WizardState.StepData.Containerization
	assert.Equal(t, state.BuildFailure, c.BuildOutcome)
	assert.Contains(t, c.BuildError, "mvn missing")
	assert.False(t, c.DeploymentReady)
}

func TestBuildQuarkus_NotQuarkus(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, TypeBuildQuarkusKubernetes, nil)
	c := h.c.State().WizardState.StepData.Containerization
	assert.False(t, c.IsQuarkusProject)
	assert.Empty(t, c.BuildOutcome)
	_, warns, _ := h.win.snapshot()
	assert.Len(t, warns, 1)
}

func TestDeployApplication(t *testing.T) {
	h := newHarness(t)
	err := h.d.Handle(context.Background(), DeployApplication{Target: "staging"})
	assert.Error(t, err)
	assert.False(t, h.c.State().WizardState.StepData.Deploy.DeploymentComplete)

	require.NoError(t, h.d.Handle(context.Background(), DeployApplication{Target: "staging", Stakeholders: []string{"developer"}}))
	dep := h.c.State().WizardState.StepData.Deploy
	assert.True(t, dep.DeploymentComplete)
	assert.Equal(t, "staging", dep.DeploymentTarget)
	assert.Contains(t, dep.Plan, "kubectl apply -n staging -f target/kubernetes")

	errs, _, infos := h.win.snapshot()
	assert.Equal(t, []string{"Select at least one stakeholder before deploying."}, errs)
	assert.Len(t, infos, 1)
}

func TestClosedDispatcherDropsAsync(t *testing.T) {
	h := newHarness(t)
	ran := false
	require.NoError(t, h.cmds.RegisterFunc(commands.StopServer, "Stop", func(context.Context, ...any) error {
		ran = true
		return nil
	}))
	h.d.Close()
	h.dispatch(t, TypeStopServer, nil)
	assert.False(t, ran)
}
