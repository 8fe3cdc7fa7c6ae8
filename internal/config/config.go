// Package config loads application settings (TOML) and the per-workspace
// model provider settings (YAML).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the top-level application configuration.
type Config struct {
	Analyzer  AnalyzerConfig  `toml:"analyzer"`
	Solution  SolutionConfig  `toml:"solution"`
	Build     BuildConfig     `toml:"build"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Log       LogConfig       `toml:"log"`
}

// AnalyzerConfig holds settings for the external analyzer.
type AnalyzerConfig struct {
	BinaryPath    string   `toml:"binary_path"`
	RPCServerPath string   `toml:"rpc_server_path"`
	MinVersion    string   `toml:"min_version"`
	AnalyzeOnSave bool     `toml:"analyze_on_save"`
	ExtraArgs     []string `toml:"extra_args"`
}

// SolutionConfig holds settings for AI solution generation.
type SolutionConfig struct {
	MaxEffort     string `toml:"max_effort"`
	MaxTokens     int    `toml:"max_tokens"`
	ServerURL     string `toml:"server_url"`
	ServerEnabled bool   `toml:"server_enabled"`
	Debounce      string `toml:"debounce"`
}

// BuildConfig holds settings for the containerization build.
type BuildConfig struct {
	QuarkusCommand   string `toml:"quarkus_command"`
	ProgressInterval string `toml:"progress_interval"`
	ManifestDir      string `toml:"manifest_dir"`
}

// WorkspaceConfig holds settings for workspace file handling.
type WorkspaceConfig struct {
	ConfigDir      string   `toml:"config_dir"`
	SearchExcludes []string `toml:"search_excludes"`
	Editor         string   `toml:"editor"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Analyzer: AnalyzerConfig{
			BinaryPath: "kantra",
			MinVersion: "0.6.0",
		},
		Solution: SolutionConfig{
			MaxEffort: "Low",
			MaxTokens: 4096,
			Debounce:  "2s",
		},
		Build: BuildConfig{
			QuarkusCommand:   "mvn clean package -DskipTests -Dquarkus.kubernetes.deploy=false",
			ProgressInterval: "1s",
			ManifestDir:      "target/kubernetes",
		},
		Workspace: WorkspaceConfig{
			ConfigDir: ".aksmigrate",
			SearchExcludes: []string{
				"target/", "build/", "node_modules/", "dist/", "out/", ".git/", ".aksmigrate/",
			},
			Editor: "code",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.config/aksmigrate/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "aksmigrate", "config.toml")
}

// ProgressInterval parses Build.ProgressInterval, falling back to one second.
func (c *Config) ProgressInterval() time.Duration {
	return parseDuration(c.Build.ProgressInterval, time.Second)
}

// DebounceInterval parses Solution.Debounce, falling back to two seconds.
func (c *Config) DebounceInterval() time.Duration {
	return parseDuration(c.Solution.Debounce, 2*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
