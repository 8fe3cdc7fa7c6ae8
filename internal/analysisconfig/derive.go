// Package analysisconfig derives validation state from the profile list,
// the active profile id and the provider settings.
package analysisconfig

import (
	"strings"

	"github.com/julianshen/aksmigrate/internal/profile"
	"github.com/julianshen/aksmigrate/internal/state"
)

// Result is the profile-derived validation state.
type Result struct {
	LabelSelectorValid    bool
	CustomRulesConfigured bool
	Errors                []state.ConfigError
}

// profileKinds are the error kinds owned by Derive.
var profileKinds = []state.ConfigErrorType{
	state.ErrNoActiveProfile,
	state.ErrInvalidLabelSelector,
	state.ErrNoCustomRules,
}

// providerKinds are the error kinds owned by ProviderStatus.
var providerKinds = []state.ConfigErrorType{
	state.ErrProviderNotConfigured,
	state.ErrProviderKeyMissing,
	state.ErrMissingProviderSettings,
}

// Derive computes the validation state for activeID. It reads nothing but
// its arguments.
func Derive(profiles []profile.AnalysisProfile, activeID string) Result {
	p, ok := profile.Find(profiles, activeID)
	if activeID == "" || !ok {
		return Result{Errors: []state.ConfigError{{
			Type:    state.ErrNoActiveProfile,
			Message: "No active analysis profile is selected.",
		}}}
	}

	res := Result{
		LabelSelectorValid:    strings.TrimSpace(p.LabelSelector) != "",
		CustomRulesConfigured: p.UseDefaultRules || len(p.CustomRules) > 0,
		Errors:                []state.ConfigError{},
	}
	if !res.LabelSelectorValid {
		res.Errors = append(res.Errors, state.ConfigError{
			Type:    state.ErrInvalidLabelSelector,
			Message: "The active profile has an empty label selector.",
		})
	}
	if !res.CustomRulesConfigured {
		res.Errors = append(res.Errors, state.ConfigError{
			Type:    state.ErrNoCustomRules,
			Message: "Default rules are disabled and no custom rules are configured.",
		})
	}
	return res
}

// Apply re-derives the profile-related state of draft in place. Errors of
// the kinds Derive owns are replaced, others are kept in order.
func Apply(draft *state.ExtensionData) {
	res := Derive(draft.Profiles, draft.ActiveProfileID)
	draft.ConfigErrors = Replace(draft.ConfigErrors, profileKinds, res.Errors)
	draft.AnalysisConfig = Flags(draft.ConfigErrors)
}

// ProviderStatus describes the provider settings file as far as validation
// is concerned.
type ProviderStatus struct {
	// LoadErr is set when the settings file is missing or unparsable.
	LoadErr error
	// Configured is false when no active provider is selected.
	Configured bool
	// MissingKey names the environment variable of an empty API key.
	MissingKey string
}

// ProviderErrors returns the configuration errors implied by st.
func ProviderErrors(st ProviderStatus) []state.ConfigError {
	switch {
	case st.LoadErr != nil:
		return []state.ConfigError{{
			Type:    state.ErrMissingProviderSettings,
			Message: "The provider settings file could not be read.",
			Error:   st.LoadErr.Error(),
		}}
	case !st.Configured:
		return []state.ConfigError{{
			Type:    state.ErrProviderNotConfigured,
			Message: "No model provider is configured in the provider settings.",
		}}
	case st.MissingKey != "":
		return []state.ConfigError{{
			Type:    state.ErrProviderKeyMissing,
			Message: "The API key for the active model provider is missing.",
			Error:   st.MissingKey + " is not set",
		}}
	}
	return []state.ConfigError{}
}

// ApplyProvider replaces the provider-related errors of draft and refreshes
// the setup step flag.
func ApplyProvider(draft *state.ExtensionData, st ProviderStatus) {
	draft.ConfigErrors = Replace(draft.ConfigErrors, providerKinds, ProviderErrors(st))
	draft.AnalysisConfig = Flags(draft.ConfigErrors)
	draft.WizardState.StepData.Setup.ProviderConfigured = ProviderReady(draft.ConfigErrors)
}

// ProviderReady reports whether no provider error is present.
func ProviderReady(errs []state.ConfigError) bool {
	for _, e := range errs {
		if containsKind(providerKinds, e.Type) {
			return false
		}
	}
	return true
}

// Replace drops every entry of errs whose kind is in kinds and appends add.
// The input slice is not modified.
func Replace(errs []state.ConfigError, kinds []state.ConfigErrorType, add []state.ConfigError) []state.ConfigError {
	out := make([]state.ConfigError, 0, len(errs)+len(add))
	for _, e := range errs {
		if !containsKind(kinds, e.Type) {
			out = append(out, e)
		}
	}
	return append(out, add...)
}

// Flags computes the compatibility flag bag from an error list.
func Flags(errs []state.ConfigError) state.AnalysisConfig {
	has := func(t state.ConfigErrorType) bool {
		for _, e := range errs {
			if e.Type == t {
				return true
			}
		}
		return false
	}

	noProfile := has(state.ErrNoActiveProfile)
	return state.AnalysisConfig{
		LabelSelectorValid:    !noProfile && !has(state.ErrInvalidLabelSelector),
		CustomRulesConfigured: !noProfile && !has(state.ErrNoCustomRules),
		ProviderConfigured:    !has(state.ErrProviderNotConfigured) && !has(state.ErrMissingProviderSettings),
		ProviderKeyMissing:    has(state.ErrProviderKeyMissing),
	}
}

func containsKind(kinds []state.ConfigErrorType, t state.ConfigErrorType) bool {
	for _, k := range kinds {
		if k == t {
			return true
		}
	}
	return false
}
