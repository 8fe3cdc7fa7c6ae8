package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ProviderSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProviderSettings_Active(t *testing.T) {
	path := writeSettings(t, `
active:
  provider: ChatOpenAI
  environment:
    OPENAI_API_KEY: sk-abc
  args:
    model: gpt-4o
    temperature: 0.2
`)
	s, err := LoadProviderSettings(path)
	require.NoError(t, err)

	assert.True(t, s.Configured())
	assert.Empty(t, s.MissingKey())
	assert.Equal(t, "gpt-4o", s.Active.Arg("model"))
	assert.Equal(t, "0.2", s.Active.Arg("temperature"))
	assert.Empty(t, s.Active.Arg("nope"))

	key, err := s.Active.Key("OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", key)
}

func TestProviderSettings_MissingKey(t *testing.T) {
	path := writeSettings(t, `
active:
  provider: ChatOpenAI
  environment:
    OPENAI_API_KEY: ""
    OPENAI_ORG: ""
`)
	t.Setenv("OPENAI_API_KEY", "")
	s, err := LoadProviderSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "OPENAI_API_KEY", s.MissingKey())

	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Empty(t, s.MissingKey())

	key, err := s.Active.Key("OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestProviderSettings_NotConfigured(t *testing.T) {
	s, err := LoadProviderSettings(writeSettings(t, "active:\n  provider: \"\"\n"))
	require.NoError(t, err)
	assert.False(t, s.Configured())

	var nilSettings *ProviderSettings
	assert.False(t, nilSettings.Configured())
}

func TestLoadProviderSettings_Errors(t *testing.T) {
	_, err := LoadProviderSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadProviderSettings(writeSettings(t, "active: [unclosed"))
	assert.ErrorContains(t, err, "parse provider settings")
}

func TestCopySampleProviderSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".aksmigrate", ProviderSettingsFile)

	backup, err := CopySampleProviderSettings(path, false)
	require.NoError(t, err)
	assert.Empty(t, backup)

	s, err := LoadProviderSettings(path)
	require.NoError(t, err)
	assert.False(t, s.Configured())
	assert.Contains(t, s.Models, "AzureOpenAI")

	require.NoError(t, os.WriteFile(path, []byte("active:\n  provider: mine\n"), 0o644))
	backup, err = CopySampleProviderSettings(path, false)
	require.NoError(t, err)
	assert.Empty(t, backup, "existing file is kept without force")

	backup, err = CopySampleProviderSettings(path, true)
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(data), "provider: mine")
}

func TestBackupName(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "/ws/provider-settings.2024-05-06_07-08-09.yaml", backupName("/ws/provider-settings.yaml", ts))
}
