package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julianshen/aksmigrate/internal/analyzer"
	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/config"
	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/provider"
	"github.com/julianshen/aksmigrate/internal/solution"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

// Chat message kinds.
const (
	KindUser      = "user"
	KindAssistant = "assistant"
)

// Targets and Sources are the choices offered when configuring a profile.
var (
	Targets = []string{
		"azure-aks",
		"azure-container-apps",
		"azure-appservice",
		"cloud-readiness",
		"quarkus",
		"openjdk17",
	}
	Sources = []string{
		"springboot",
		"java-ee",
		"jakarta-ee",
		"jboss-eap",
		"weblogic",
		"websphere",
	}
)

const noSource = "(none)"

var errNoActiveProfile = errors.New("no active analysis profile")

func (e *Extension) registerCommands() error {
	handlers := map[string]struct {
		title string
		fn    commands.Handler
	}{
		commands.OpenProfilesPanel:         {"Manage Analysis Profiles", e.openProfilesPanel},
		commands.ConfigureSourcesTargets:   {"Configure Sources and Targets", e.configureSourcesTargets},
		commands.ConfigureLabelSelector:    {"Configure Label Selector", e.configureLabelSelector},
		commands.ConfigureCustomRules:      {"Configure Custom Rules", e.configureCustomRules},
		commands.OverrideAnalyzerBinaries:  {"Override Analyzer Binary", e.overrideAnalyzerBinaries},
		commands.OverrideRPCServerBinaries: {"Override RPC Server Binary", e.overrideRPCServerBinaries},
		commands.ModelProviderSettingsOpen: {"Open Model Provider Settings", e.openProviderSettings},
		commands.GetSolution:               {"Get Solution", e.getSolution},
		commands.GetSolutionWithContext:    {"Get Solution With Context", e.getSolutionWithContext},
		commands.ViewFix:                   {"View Fix", e.viewFix},
		commands.ApplyFile:                 {"Apply File", e.applyFile},
		commands.DiscardFile:               {"Discard File", e.discardFile},
		commands.RunAnalysis:               {"Run Analysis", e.runAnalysisCommand},
		commands.StartServer:               {"Start Analyzer", e.startServer},
		commands.StopServer:                {"Stop Analyzer", e.stopServer},
		commands.CloseWizard:               {"Close Migration Wizard", e.closeWizard},
	}

	for _, id := range commands.IDs {
		h, ok := handlers[id]
		if !ok {
			return fmt.Errorf("no handler for %s", id)
		}
		fn := h.fn
		if override, ok := e.opts.Handlers[id]; ok && override != nil {
			fn = override
		}
		if err := e.Commands.RegisterFunc(id, h.title, fn); err != nil {
			return err
		}
	}
	return nil
}

func argAt[T any](args []any, i int, name string) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing argument %s", name)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %s: unexpected type %T", name, args[i])
	}
	return v, nil
}

func optionalArg[T any](args []any, i int) T {
	var zero T
	if i >= len(args) {
		return zero
	}
	v, _ := args[i].(T)
	return v
}

func (e *Extension) openProfilesPanel(ctx context.Context, _ ...any) error {
	return e.editor.Open(ctx, e.profiles.Path(), 0)
}

func (e *Extension) openProviderSettings(ctx context.Context, _ ...any) error {
	if _, err := config.CopySampleProviderSettings(e.paths.ProviderSettings, false); err != nil {
		return err
	}
	return e.editor.Open(ctx, e.paths.ProviderSettings, 0)
}

// editableProfile returns the profile with id, or the active profile when
// id is empty. ok is false when the user has been told why it cannot be
// edited.
func (e *Extension) editableProfile(id string) (profile.AnalysisProfile, bool) {
	snap := e.Container.State()
	if id == "" {
		id = snap.ActiveProfileID
	}
	p, found := profile.Find(snap.Profiles, id)
	if !found {
		e.window.ShowWarning("Select an analysis profile first.")
		return profile.AnalysisProfile{}, false
	}
	if p.ReadOnly {
		e.window.ShowWarning(fmt.Sprintf("Profile %q is built in and cannot be edited. Create a copy first.", p.Name))
		return profile.AnalysisProfile{}, false
	}
	return p, true
}

func (e *Extension) saveProfile(ctx context.Context, originalID string, p profile.AnalysisProfile) error {
	// Rejections are reported by the dispatcher.
	_ = e.Dispatcher.Handle(ctx, dispatch.UpdateProfile{OriginalID: originalID, UpdatedProfile: p})
	return nil
}

func (e *Extension) configureSourcesTargets(ctx context.Context, _ ...any) error {
	p, ok := e.editableProfile("")
	if !ok {
		return nil
	}
	target, ok, err := e.window.Pick(ctx, "Choose a migration target", Targets)
	if err != nil || !ok {
		return err
	}
	source, ok, err := e.window.Pick(ctx, "Choose a migration source", append([]string{noSource}, Sources...))
	if err != nil || !ok {
		return err
	}

	updated := p
	updated.Targets = []string{target}
	updated.Sources = nil
	if source != noSource {
		updated.Sources = []string{source}
	}
	updated.LabelSelector = profile.BuildLabelSelector(updated.Sources, updated.Targets)
	return e.saveProfile(ctx, p.ID, updated)
}

func (e *Extension) configureLabelSelector(ctx context.Context, _ ...any) error {
	p, ok := e.editableProfile("")
	if !ok {
		return nil
	}
	var items []string
	seen := map[string]bool{}
	for _, s := range []string{profile.BuildLabelSelector(p.Sources, p.Targets), p.LabelSelector, "(discovery)"} {
		if s != "" && !seen[s] {
			seen[s] = true
			items = append(items, s)
		}
	}
	choice, ok, err := e.window.Pick(ctx, "Choose the label selector", items)
	if err != nil || !ok {
		return err
	}
	updated := p
	updated.LabelSelector = choice
	return e.saveProfile(ctx, p.ID, updated)
}

func (e *Extension) configureCustomRules(ctx context.Context, args ...any) error {
	p, ok := e.editableProfile(optionalArg[string](args, 0))
	if !ok {
		return nil
	}
	if err := os.MkdirAll(e.paths.RulesDir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	rules, err := ruleFiles(e.paths.RulesDir)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		e.window.ShowWarning(fmt.Sprintf("No rule files found. Add .yaml rules to %s and try again.", e.paths.RulesDir))
		return nil
	}

	updated := p
	updated.CustomRules = rules
	if err := e.saveProfile(ctx, p.ID, updated); err != nil {
		return err
	}
	e.window.ShowInfo(fmt.Sprintf("Profile %q now uses %d custom rule file(s).", p.Name, len(rules)))
	return nil
}

func ruleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	var out []string
	for _, ent := range entries {
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if ent.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		out = append(out, filepath.Join(dir, ent.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (e *Extension) overrideAnalyzerBinaries(ctx context.Context, args ...any) error {
	path := optionalArg[string](args, 0)
	if path == "" {
		e.window.ShowWarning("Give the path of the analyzer binary to use.")
		return nil
	}
	if err := analyzer.CheckExecutable(path); err != nil {
		return err
	}
	v, err := analyzer.CheckVersion(ctx, path, e.cfg.Analyzer.MinVersion)
	if err != nil {
		return err
	}

	e.cfgMu.Lock()
	e.cfg.Analyzer.BinaryPath = path
	err = e.saveConfig()
	rpc := e.cfg.Analyzer.RPCServerPath
	e.cfgMu.Unlock()
	if err != nil {
		return err
	}
	e.analyzer.SetBinaries(path, rpc)

	version := "unknown"
	if v != nil {
		version = v.String()
	}
	e.window.ShowInfo(fmt.Sprintf("Analyzer binary set to %s (version %s). Restart the analyzer to use it.", path, version))
	return nil
}

func (e *Extension) overrideRPCServerBinaries(_ context.Context, args ...any) error {
	path := optionalArg[string](args, 0)
	if path == "" {
		e.window.ShowWarning("Give the path of the RPC server binary to use.")
		return nil
	}
	if err := analyzer.CheckExecutable(path); err != nil {
		return err
	}

	e.cfgMu.Lock()
	e.cfg.Analyzer.RPCServerPath = path
	err := e.saveConfig()
	bin := e.cfg.Analyzer.BinaryPath
	e.cfgMu.Unlock()
	if err != nil {
		return err
	}
	e.analyzer.SetBinaries(bin, path)
	e.window.ShowInfo(fmt.Sprintf("RPC server binary set to %s. Restart the analyzer to use it.", path))
	return nil
}

// saveConfig writes the configuration when a path is set. e.cfgMu must be
// held.
func (e *Extension) saveConfig() error {
	if e.opts.ConfigPath == "" {
		return nil
	}
	return config.Save(e.opts.ConfigPath, e.cfg)
}

func (e *Extension) startServer(ctx context.Context, _ ...any) error {
	if e.analyzer.Running() {
		e.window.ShowInfo("The analyzer is already running.")
		return nil
	}
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.IsStartingServer = true })
	err := e.analyzer.Start(e.ctx, func(st state.ServerState) {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.ServerState = st })
	})
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.IsStartingServer = false })
	return err
}

func (e *Extension) stopServer(context.Context, ...any) error {
	if err := e.analyzer.Stop(); err != nil {
		return err
	}
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.ServerState = state.ServerInitial })
	return nil
}

func (e *Extension) runAnalysisCommand(ctx context.Context, _ ...any) error {
	return e.runAnalysis(ctx)
}

// runScheduledAnalysis runs after applied changes settle.
func (e *Extension) runScheduledAnalysis() {
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.IsAnalysisScheduled = false })
	if !e.analyzer.Running() {
		e.log.Debug().Msg("analyzer stopped, skipping scheduled analysis")
		return
	}
	if err := e.runAnalysis(e.ctx); err != nil {
		e.window.ShowError(fmt.Sprintf("Analysis failed: %v", err))
	}
}

func (e *Extension) runAnalysis(ctx context.Context) error {
	snap := e.Container.State()
	p, ok := snap.ActiveProfile()
	if !ok {
		return errNoActiveProfile
	}
	if !e.analyzer.Running() {
		return analyzer.ErrNotRunning
	}
	if !e.analysisMu.TryLock() {
		e.window.ShowWarning("An analysis is already running.")
		return nil
	}
	defer e.analysisMu.Unlock()

	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.IsAnalyzing = true
		draft.IsAnalysisScheduled = false
		draft.AnalysisProgress = 0
	})

	ruleSets, err := e.analyzer.Analyze(ctx, analyzer.Request{
		Root:            e.paths.Workspace,
		OutputDir:       filepath.Join(e.paths.DataDir, "output"),
		LabelSelector:   p.LabelSelector,
		Rules:           p.CustomRules,
		UseDefaultRules: p.UseDefaultRules,
	}, func(pct int) {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.AnalysisProgress = pct })
	})
	if err != nil {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.IsAnalyzing = false })
		return err
	}

	incidents := analyzer.Enhance(ruleSets)
	if _, err := analyzer.SaveResults(e.paths.DataDir, analyzer.Results{
		ProfileID:         p.ID,
		RuleSets:          ruleSets,
		EnhancedIncidents: incidents,
	}); err != nil {
		e.log.Warn().Err(err).Msg("saving analysis results")
	}

	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.RuleSets = ruleSets
		draft.EnhancedIncidents = incidents
		draft.IsAnalyzing = false
		draft.AnalysisProgress = 100
		draft.WizardState.StepData.Analysis.AnalysisCompleted = true
		draft.WizardState.StepData.Analysis.HasIncidents = len(incidents) > 0
	})
	e.log.Info().Str("profile", p.ID).Int("incidents", len(incidents)).Msg("analysis complete")
	e.window.ShowInfo(fmt.Sprintf("Analysis complete: %d incident(s) found.", len(incidents)))
	return nil
}

func (e *Extension) getSolution(ctx context.Context, args ...any) error {
	incidents, err := argAt[[]state.EnhancedIncident](args, 0, "incidents")
	if err != nil {
		return err
	}
	effort := optionalArg[string](args, 1)
	if effort == "" {
		effort = e.Container.State().SolutionEffort
	}
	scope := state.Scope{Incidents: incidents, Effort: effort}
	prompt := fmt.Sprintf("Fix %d incident(s) at %s effort.", len(incidents), effort)
	return e.solve(ctx, scope, prompt, func(eng *solution.Engine, sent func(), onDelta func(string)) (solution.Result, error) {
		return eng.Solve(ctx, incidents, effort, sent, onDelta)
	})
}

func (e *Extension) getSolutionWithContext(ctx context.Context, args ...any) error {
	inc, err := argAt[state.EnhancedIncident](args, 0, "incident")
	if err != nil {
		return err
	}
	effort := e.Container.State().SolutionEffort
	scope := state.Scope{Incidents: []state.EnhancedIncident{inc}, Effort: effort}
	prompt := fmt.Sprintf("Fix %s in %s with the surrounding code.", inc.ViolationID, workspace.PathFromURI(inc.URI))
	return e.solve(ctx, scope, prompt, func(eng *solution.Engine, sent func(), onDelta func(string)) (solution.Result, error) {
		return eng.SolveWithContext(ctx, inc, effort, sent, onDelta)
	})
}

func (e *Extension) engine() (*solution.Engine, error) {
	llm, model := e.opts.LLM, e.opts.Model
	if llm == nil {
		s, err := config.LoadProviderSettings(e.paths.ProviderSettings)
		if err != nil {
			return nil, err
		}
		if !s.Configured() {
			return nil, errors.New("no model provider is selected in the provider settings")
		}
		llm, model, err = provider.NewFromSettings(s.Active)
		if err != nil {
			return nil, err
		}
	}
	return solution.NewEngine(llm, model, e.cfg.Solution.MaxTokens, e.paths.Workspace, e.log), nil
}

// solve runs one solution request and records its progress in state. Only
// one request runs at a time.
func (e *Extension) solve(ctx context.Context, scope state.Scope, prompt string, run func(eng *solution.Engine, sent func(), onDelta func(string)) (solution.Result, error)) error {
	if !e.solveMu.TryLock() {
		e.window.ShowWarning("A solution is already being fetched.")
		return nil
	}
	defer e.solveMu.Unlock()

	eng, err := e.engine()
	if err != nil {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.SolutionState = state.SolutionFailedOnStart })
		return err
	}

	token := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.IsFetchingSolution = true
		draft.SolutionState = state.SolutionStarted
		draft.SolutionScope = &scope
		draft.SolutionData = nil
		draft.ChatMessages = append(draft.ChatMessages,
			state.ChatMessage{MessageToken: uuid.NewString(), Kind: KindUser, Value: prompt, Timestamp: now},
			state.ChatMessage{MessageToken: token, Kind: KindAssistant, Timestamp: now},
		)
	})

	sent := func() {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.SolutionState = state.SolutionSent })
	}
	onDelta := func(text string) {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
			for i := range draft.ChatMessages {
				if draft.ChatMessages[i].MessageToken == token {
					draft.ChatMessages[i].Value += text
					return
				}
			}
		})
	}

	res, err := run(eng, sent, onDelta)
	if err != nil {
		failed := state.SolutionFailedOnSending
		var se *solution.StartError
		if errors.As(err, &se) {
			failed = state.SolutionFailedOnStart
		}
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
			draft.SolutionState = failed
			draft.IsFetchingSolution = false
		})
		return err
	}

	data := res.Data
	var staged []state.LocalChange
	for _, fc := range data.Changes {
		lc, err := solution.Stage(ctx, e.paths.ChangesDir, fc)
		if err != nil {
			data.EncounteredErrors = append(data.EncounteredErrors, err.Error())
			continue
		}
		staged = append(staged, lc)
	}

	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.SolutionData = &data
		draft.LocalChanges = append(draft.LocalChanges, staged...)
		draft.SolutionState = state.SolutionReceived
		draft.IsFetchingSolution = false
	})
	e.log.Info().Int("changes", len(staged)).Int("errors", len(data.EncounteredErrors)).Msg("solution received")
	e.window.ShowInfo(fmt.Sprintf("Received %d proposed change(s).", len(staged)))
	return nil
}

func (e *Extension) viewFix(ctx context.Context, args ...any) error {
	change, err := argAt[state.LocalChange](args, 0, "change")
	if err != nil {
		return err
	}
	return e.editor.Open(ctx, workspace.PathFromURI(change.ModifiedURI), 0)
}

func (e *Extension) applyFile(_ context.Context, args ...any) error {
	change, err := argAt[state.LocalChange](args, 0, "change")
	if err != nil {
		return err
	}
	if err := solution.Apply(change); err != nil {
		return err
	}
	if e.cfg.Analyzer.AnalyzeOnSave && e.analyzer.Running() {
		e.Dispatcher.Mutate(func(draft *state.ExtensionData) { draft.IsAnalysisScheduled = true })
		e.reanalyze.Trigger()
	}
	return nil
}

func (e *Extension) discardFile(_ context.Context, args ...any) error {
	change, err := argAt[state.LocalChange](args, 0, "change")
	if err != nil {
		return err
	}
	return solution.Discard(change)
}

func (e *Extension) closeWizard(context.Context, ...any) error {
	snap := e.Container.State()
	e.log.Info().Str("step", string(snap.WizardState.CurrentStep)).Msg("wizard closed")
	e.window.ShowInfo("Migration wizard finished.")
	return nil
}
