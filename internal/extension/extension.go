// Package extension is the host process: it owns the state container,
// wires the dispatcher to the analyzer, the solution engine, the build
// runner and the stores, and registers the host commands views rely on.
package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/julianshen/aksmigrate/internal/analysisconfig"
	"github.com/julianshen/aksmigrate/internal/analyzer"
	"github.com/julianshen/aksmigrate/internal/broadcast"
	"github.com/julianshen/aksmigrate/internal/build"
	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/config"
	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/provider"
	"github.com/julianshen/aksmigrate/internal/solution"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/store"
	"github.com/julianshen/aksmigrate/internal/wizard"
	"github.com/julianshen/aksmigrate/internal/workspace"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Options configure Activate.
type Options struct {
	// Root is the workspace directory.
	Root string
	// Config is the application configuration. Nil means defaults.
	Config *config.Config
	// ConfigPath is where binary overrides are saved. Empty disables saving.
	ConfigPath string
	// StorePath is the key-value database. Empty means DefaultStorePath;
	// ":memory:" keeps state in memory.
	StorePath string
	// Window receives notifications and picks. Nil logs them.
	Window dispatch.Window
	// Steps selects the wizard sequence. Nil means the six-step wizard.
	Steps []state.Step
	// Bundled overrides the compiled-in profiles.
	Bundled []profile.AnalysisProfile
	// Handlers replace the default handlers of host commands, keyed by id.
	// Views use it for commands that open their own surfaces.
	Handlers map[string]commands.Handler

	// Collaborator overrides, mainly for tests.
	LLM     provider.LLMProvider
	Model   string
	Builder dispatch.Builder
	Editor  dispatch.FileOpener

	Log zerolog.Logger
}

// Extension is an activated host process.
type Extension struct {
	Container  *state.Container
	Hub        *broadcast.Hub
	Commands   *commands.Registry
	Dispatcher *dispatch.Dispatcher

	opts     Options
	cfg      *config.Config
	paths    Paths
	log      zerolog.Logger
	window   dispatch.Window
	editor   dispatch.FileOpener
	kv       *store.Store
	profiles *profile.Store
	analyzer *analyzer.Server

	reanalyze     *solution.Debouncer
	settingsDelay *solution.Debouncer
	watcher       *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	// solveMu and analysisMu each allow one request at a time.
	solveMu    sync.Mutex
	analysisMu sync.Mutex
	// cfgMu guards binary overrides written to cfg.
	cfgMu sync.Mutex

	disposeOnce sync.Once
}

// Activate creates the extension and initializes it. On failure
// everything created so far is disposed and the error is returned.
func Activate(ctx context.Context, opts Options) (*Extension, error) {
	e, err := newExtension(opts)
	if err != nil {
		return nil, err
	}
	if err := e.initialize(ctx); err != nil {
		e.log.Error().Err(err).Msg("activation failed")
		e.window.ShowError(fmt.Sprintf("Failed to initialize AKS Migrate: %v", err))
		e.Dispose()
		return nil, err
	}
	return e, nil
}

func newExtension(opts Options) (*Extension, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	paths, err := ResolvePaths(opts.Root, cfg)
	if err != nil {
		return nil, err
	}

	window := opts.Window
	if window == nil {
		window = logWindow{log: opts.Log}
	}
	editor := opts.Editor
	if editor == nil {
		editor = workspace.NewEditor(cfg.Workspace.Editor)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Extension{
		Container: state.NewContainer(state.Default(paths.Workspace)),
		Commands:  commands.NewRegistry(),
		opts:      opts,
		cfg:       cfg,
		paths:     paths,
		log:       opts.Log,
		window:    window,
		editor:    editor,
		profiles:  profile.NewStore(paths.ConfigDir, opts.Log),
		analyzer:  analyzer.NewServer(cfg.Analyzer.BinaryPath, cfg.Analyzer.RPCServerPath, cfg.Analyzer.ExtraArgs, opts.Log),
		ctx:       ctx,
		cancel:    cancel,
	}
	e.Hub = broadcast.New(e.Container, opts.Log)
	e.reanalyze = solution.NewDebouncer(cfg.DebounceInterval(), e.runScheduledAnalysis)
	e.settingsDelay = solution.NewDebouncer(settingsDebounce, e.RefreshProviderStatus)
	return e, nil
}

// settingsDebounce coalesces the bursts of events editors produce when
// saving a file.
const settingsDebounce = 200 * time.Millisecond

func (e *Extension) initialize(ctx context.Context) error {
	if err := e.profiles.Init(); err != nil {
		return err
	}
	if _, err := config.CopySampleProviderSettings(e.paths.ProviderSettings, false); err != nil {
		e.log.Warn().Err(err).Msg("copying sample provider settings")
	}

	storePath := e.opts.StorePath
	if storePath == "" {
		storePath = DefaultStorePath()
		if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	kv, err := store.NewStore(storePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	e.kv = kv
	global := kv.Scope(store.GlobalScope)
	ws := kv.Scope(store.WorkspaceScope(e.paths.Workspace))

	if err := e.profiles.MigrateLegacy(global); err != nil {
		e.log.Warn().Err(err).Msg("migrating legacy profiles")
	}

	bundled := e.opts.Bundled
	if bundled == nil {
		bundled = profile.Bundled()
	}
	all := profile.Combine(bundled, e.profiles.Load())
	stored, err := profile.LoadActiveID(ws)
	if err != nil {
		e.log.Warn().Err(err).Msg("reading active profile id")
	}
	activeID := profile.ResolveActiveID(all, stored)

	var builder dispatch.Builder = e.opts.Builder
	if builder == nil {
		builder = build.NewRunner(build.Options{
			Command:     e.cfg.Build.QuarkusCommand,
			Interval:    e.cfg.ProgressInterval(),
			ManifestDir: e.cfg.Build.ManifestDir,
		}, e.log)
	}
	e.Dispatcher = dispatch.New(dispatch.Deps{
		Container:   e.Container,
		Profiles:    e.profiles,
		Workspace:   ws,
		Bundled:     bundled,
		Commands:    e.Commands,
		Window:      e.window,
		Wizard:      wizard.New(e.opts.Steps),
		Builder:     builder,
		Files:       workspace.NewSearcher(e.paths.Workspace, e.cfg.Workspace.SearchExcludes),
		Editor:      e.editor,
		ManifestDir: e.cfg.Build.ManifestDir,
		Log:         e.log,
	})

	if err := e.registerCommands(); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	status := e.providerStatus()
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.Profiles = all
		draft.ActiveProfileID = activeID
		draft.WizardState.StepData.Profile.ProfilesLoaded = true
		draft.WizardState.StepData.Profile.SelectedProfileID = activeID
		draft.SolutionEffort = e.cfg.Solution.MaxEffort
		draft.SolutionServerEnabled = e.cfg.Solution.ServerEnabled
		analysisconfig.Apply(draft)
		analysisconfig.ApplyProvider(draft, status)
	})

	e.loadResults()

	if err := e.watchSettings(); err != nil {
		e.log.Warn().Err(err).Msg("watching provider settings")
	}

	e.log.Info().
		Str("workspace", e.paths.Workspace).
		Int("profiles", len(all)).
		Str("active", activeID).
		Msg("extension activated")
	return ctx.Err()
}

// Paths returns the extension paths.
func (e *Extension) Paths() Paths { return e.paths }

// Config returns the application configuration in use.
func (e *Extension) Config() *config.Config { return e.cfg }

// Profiles returns the profile store.
func (e *Extension) Profiles() *profile.Store { return e.profiles }

func (e *Extension) providerStatus() analysisconfig.ProviderStatus {
	s, err := config.LoadProviderSettings(e.paths.ProviderSettings)
	if err != nil {
		return analysisconfig.ProviderStatus{LoadErr: err}
	}
	return analysisconfig.ProviderStatus{Configured: s.Configured(), MissingKey: s.MissingKey()}
}

// RefreshProviderStatus re-reads the provider settings and replaces the
// provider-related configuration errors.
func (e *Extension) RefreshProviderStatus() {
	status := e.providerStatus()
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		analysisconfig.ApplyProvider(draft, status)
	})
	e.log.Debug().Bool("configured", status.Configured).Str("missingKey", status.MissingKey).Msg("provider settings reloaded")
}

func (e *Extension) loadResults() {
	r, err := analyzer.LoadLatestResults(e.paths.DataDir)
	if err != nil {
		e.log.Warn().Err(err).Msg("loading persisted analysis results")
		return
	}
	if r == nil {
		return
	}
	e.Dispatcher.Mutate(func(draft *state.ExtensionData) {
		draft.RuleSets = r.RuleSets
		draft.EnhancedIncidents = r.EnhancedIncidents
		draft.WizardState.StepData.Analysis.AnalysisCompleted = true
		draft.WizardState.StepData.Analysis.HasIncidents = len(r.EnhancedIncidents) > 0
	})
	e.log.Info().Time("created", r.CreatedAt).Int("incidents", len(r.EnhancedIncidents)).Msg("loaded analysis results")
}

// watchSettings follows the config directory, since editors often replace
// files instead of writing them in place.
func (e *Extension) watchSettings() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(e.paths.ConfigDir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", e.paths.ConfigDir, err)
	}
	e.watcher = w

	target := filepath.Clean(e.paths.ProviderSettings)
	e.wg.Go(func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					e.settingsDelay.Trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				e.log.Warn().Err(err).Msg("settings watcher")
			case <-e.ctx.Done():
				return
			}
		}
	})
	return nil
}

// Dispose stops background work, the analyzer and every view, then closes
// the stores. It is safe to call more than once.
func (e *Extension) Dispose() {
	e.disposeOnce.Do(func() {
		e.cancel()
		e.reanalyze.Stop()
		e.settingsDelay.Stop()
		if e.watcher != nil {
			if err := e.watcher.Close(); err != nil {
				e.log.Warn().Err(err).Msg("closing watcher")
			}
		}
		e.wg.Wait()
		if e.Dispatcher != nil {
			e.Dispatcher.Close()
		}
		if err := e.analyzer.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("stopping analyzer")
		}
		e.Hub.Close()
		e.Container.Close()
		e.Commands.UnregisterAll()
		if e.kv != nil {
			if err := e.kv.Close(); err != nil {
				e.log.Warn().Err(err).Msg("closing state store")
			}
		}
		e.log.Info().Msg("extension disposed")
	})
}

// logWindow reports to the log when no view is attached.
type logWindow struct {
	log zerolog.Logger
}

func (w logWindow) ShowError(msg string)   { w.log.Error().Msg(msg) }
func (w logWindow) ShowWarning(msg string) { w.log.Warn().Msg(msg) }
func (w logWindow) ShowInfo(msg string)    { w.log.Info().Msg(msg) }

func (w logWindow) Pick(_ context.Context, title string, _ []string) (string, bool, error) {
	w.log.Warn().Str("title", title).Msg("no view attached to answer pick")
	return "", false, nil
}
