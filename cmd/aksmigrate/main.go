// cmd/aksmigrate/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/config"
	"github.com/julianshen/aksmigrate/internal/extension"
	"github.com/julianshen/aksmigrate/internal/logging"
	"github.com/julianshen/aksmigrate/internal/tui"

	// Register providers via init() side effects.
	_ "github.com/julianshen/aksmigrate/internal/provider/openai"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath    string
	workspaceFlag string
	logLevelFlag  string
	logFileFlag   string
	storeFlag     string
)

// errReported marks failures the window has already shown to the user.
var errReported = errors.New("reported")

func versionString() string {
	return fmt.Sprintf("aksmigrate %s (commit: %s, built: %s)", version, commit, date)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aksmigrate",
		Short: "Migrate Java applications to Azure Kubernetes Service",
		Long: "aksmigrate walks a workspace through setup, analysis profiles, analysis, " +
			"AI-assisted resolution, containerization and deployment.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("the wizard needs a terminal; use \"aksmigrate serve\" to drive it over stdio")
			}
			return runWizard(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file path (default: user config dir)")
	flags.StringVarP(&workspaceFlag, "workspace", "w", "", "workspace directory (default: current directory)")
	flags.StringVar(&logLevelFlag, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&logFileFlag, "log-file", "", "log file (default: aksmigrate.log next to the config file)")
	flags.StringVar(&storeFlag, "store", "", "state database path (\":memory:\" keeps state in memory)")

	rootCmd.AddCommand(
		newServeCmd(),
		newProfilesCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), versionString())
			},
		},
	)
	return rootCmd
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist. It returns the path overrides are saved to.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// newLogger builds the process logger. The wizard owns the terminal, so it
// passes a nil console and logs to the file only.
func newLogger(cfg *config.Config, cfgPath string, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	file := logFileFlag
	if file == "" && console == nil && cfgPath != "" {
		file = filepath.Join(filepath.Dir(cfgPath), "aksmigrate.log")
	}
	log, closer, err := logging.New(logging.Options{
		Level:        level,
		Console:      console,
		ConsoleLevel: "warn",
		File:         file,
	})
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating logger: %w", err)
	}
	return log.With().Str("component", "aksmigrate").Logger(), closer, nil
}

func workspaceRoot() (string, error) {
	root := workspaceFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving workspace: %w", err)
		}
		root = wd
	}
	return filepath.Abs(root)
}

// session holds what every command derives from the flags before it
// activates the extension.
type session struct {
	cfg     *config.Config
	cfgPath string
	root    string
	log     zerolog.Logger
	closer  io.Closer
}

// newSession loads config, builds the logger and resolves the workspace.
func newSession(console io.Writer) (*session, error) {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return nil, err
	}
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	log, closer, err := newLogger(cfg, cfgPath, console)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, cfgPath: cfgPath, root: root, log: log, closer: closer}, nil
}

// activate fills opts from the session and activates the extension.
func (s *session) activate(ctx context.Context, opts extension.Options) (*extension.Extension, error) {
	opts.Root = s.root
	opts.Config = s.cfg
	opts.ConfigPath = s.cfgPath
	opts.StorePath = storeFlag
	opts.Log = s.log

	ext, err := extension.Activate(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("activating: %w", err)
	}
	return ext, nil
}

func (s *session) Close() {
	if err := s.closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log: %v\n", err)
	}
}

// runWizard runs the terminal wizard until the user quits or finishes.
func runWizard(ctx context.Context) error {
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	bridge := tui.NewBridge()
	ext, err := sess.activate(ctx, extension.Options{
		Window:   bridge,
		Handlers: map[string]commands.Handler{commands.CloseWizard: bridge.CloseWizard},
	})
	if err != nil {
		return err
	}
	defer ext.Dispose()

	if err := ext.Hub.Register("tui", bridge); err != nil {
		return fmt.Errorf("registering view: %w", err)
	}
	defer ext.Hub.Unregister("tui")

	model := tui.NewModel(ext.Dispatcher, tui.Options{
		AppName: "aksmigrate",
		Targets: extension.Targets,
		Sources: extension.Sources,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	if model.Finished() {
		fmt.Println("Migration wizard finished.")
	}
	return nil
}
