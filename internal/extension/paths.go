package extension

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianshen/aksmigrate/internal/config"
)

// ErrNoWorkspace is returned when the workspace root is missing or is not
// a directory.
var ErrNoWorkspace = errors.New("no workspace open")

// Paths are the locations the extension reads and writes.
type Paths struct {
	// Workspace is the absolute workspace root.
	Workspace string
	// ConfigDir holds project-local settings and profiles.
	ConfigDir string
	// ProviderSettings is the model provider settings file.
	ProviderSettings string
	// DataDir holds persisted analysis results and analyzer output.
	DataDir string
	// ChangesDir holds staged solution files.
	ChangesDir string
	// RulesDir holds custom rule files for profiles.
	RulesDir string
}

// ResolvePaths checks root and derives the extension paths from it.
func ResolvePaths(root string, cfg *config.Config) (Paths, error) {
	if root == "" {
		return Paths{}, ErrNoWorkspace
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Paths{}, fmt.Errorf("%w: %v", ErrNoWorkspace, err)
	}
	if !info.IsDir() {
		return Paths{}, fmt.Errorf("%w: %s is not a directory", ErrNoWorkspace, abs)
	}

	dir := cfg.Workspace.ConfigDir
	if dir == "" {
		dir = config.DefaultConfig().Workspace.ConfigDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(abs, dir)
	}
	return Paths{
		Workspace:        abs,
		ConfigDir:        dir,
		ProviderSettings: filepath.Join(dir, config.ProviderSettingsFile),
		DataDir:          filepath.Join(dir, "data"),
		ChangesDir:       filepath.Join(dir, "changes"),
		RulesDir:         filepath.Join(dir, "rules"),
	}, nil
}

// DefaultStorePath is the user-level key-value database shared by every
// workspace.
func DefaultStorePath() string {
	return filepath.Join(filepath.Dir(config.DefaultPath()), "state.db")
}
