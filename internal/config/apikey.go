package config

import (
	"fmt"
	"os"
)

// ResolveAPIKey resolves an API key based on the given source.
// Supported sources: "env" (from environment variable), "config" (from the
// provider settings value), "keyring" (currently falls back to env).
func ResolveAPIKey(source, configValue, envVar string) (string, error) {
	switch source {
	case "keyring", "env":
		return resolveFromEnv(envVar)
	case "config":
		if configValue == "" {
			return "", fmt.Errorf("key source is 'config' but %s is empty in provider settings", envVar)
		}
		return configValue, nil
	default:
		return "", fmt.Errorf("unknown api key source: %q", source)
	}
}

// KeySource picks "config" when the settings file carries a value and
// "env" otherwise.
func KeySource(configValue string) string {
	if configValue != "" {
		return "config"
	}
	return "env"
}

func resolveFromEnv(envVar string) (string, error) {
	if envVar == "" {
		return "", fmt.Errorf("no environment variable name specified")
	}
	val := os.Getenv(envVar)
	if val == "" {
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return val, nil
}
