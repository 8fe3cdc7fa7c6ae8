package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderSettingsFile is the file name inside the workspace config dir.
const ProviderSettingsFile = "provider-settings.yaml"

//go:embed sample-provider-settings.yaml
var sampleProviderSettings []byte

// ProviderSettings is the per-workspace model provider configuration.
type ProviderSettings struct {
	Active *ProviderEntry           `yaml:"active"`
	Models map[string]ProviderEntry `yaml:"models,omitempty"`
}

// ProviderEntry selects a provider kind, the environment it reads keys from
// and provider-specific arguments.
type ProviderEntry struct {
	Provider    string            `yaml:"provider"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Args        map[string]any    `yaml:"args,omitempty"`
}

// LoadProviderSettings parses the settings file at path.
func LoadProviderSettings(path string) (*ProviderSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider settings: %w", err)
	}
	var s ProviderSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse provider settings: %w", err)
	}
	return &s, nil
}

// Configured reports whether an active provider is selected.
func (s *ProviderSettings) Configured() bool {
	return s != nil && s.Active != nil && strings.TrimSpace(s.Active.Provider) != ""
}

// MissingKey returns the first (sorted) *_API_KEY variable of the active
// provider that is empty in the settings and unset in the process
// environment, or "".
func (s *ProviderSettings) MissingKey() string {
	if !s.Configured() {
		return ""
	}
	names := make([]string, 0, len(s.Active.Environment))
	for name := range s.Active.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.HasSuffix(name, "_API_KEY") {
			continue
		}
		if s.Active.Environment[name] == "" && os.Getenv(name) == "" {
			return name
		}
	}
	return ""
}

// Arg returns a string argument of the active provider.
func (e ProviderEntry) Arg(name string) string {
	v, ok := e.Args[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Key resolves the value of an API key variable, preferring the settings
// file over the process environment.
func (e ProviderEntry) Key(envVar string) (string, error) {
	value := e.Environment[envVar]
	return ResolveAPIKey(KeySource(value), value, envVar)
}

// CopySampleProviderSettings writes the sample settings to path when no
// file exists. With force an existing file is renamed to a timestamped
// backup first. It returns the backup path, if any.
func CopySampleProviderSettings(path string, force bool) (string, error) {
	_, err := os.Stat(path)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat provider settings: %w", err)
	}
	if exists && !force {
		return "", nil
	}

	var backup string
	if exists {
		backup = backupName(path, time.Now().UTC())
		if err := os.Rename(path, backup); err != nil {
			return "", fmt.Errorf("back up provider settings: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backup, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, sampleProviderSettings, 0o644); err != nil {
		return backup, fmt.Errorf("write provider settings: %w", err)
	}
	return backup, nil
}

// backupName turns dir/name.ext into dir/name.2006-01-02_15-04-05.ext.
func backupName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "." + now.Format("2006-01-02_15-04-05") + ext
}
