// Package profile manages named analysis profiles: the compiled-in bundled
// set, user profiles persisted in the workspace, and the active profile id.
package profile

import (
	"strings"

	"github.com/google/uuid"
)

// AnalysisProfile is a named bundle of analysis configuration.
type AnalysisProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Mode            string   `json:"mode,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	Targets         []string `json:"targets,omitempty"`
	LabelSelector   string   `json:"labelSelector"`
	CustomRules     []string `json:"customRules"`
	UseDefaultRules bool     `json:"useDefaultRules"`
	ReadOnly        bool     `json:"readOnly,omitempty"`
}

// NewID returns a fresh profile identifier.
func NewID() string {
	return uuid.New().String()
}

// Find returns the profile with the given id.
func Find(profiles []AnalysisProfile, id string) (AnalysisProfile, bool) {
	for _, p := range profiles {
		if p.ID == id {
			return p, true
		}
	}
	return AnalysisProfile{}, false
}

// FindByName returns the profile with the given name.
func FindByName(profiles []AnalysisProfile, name string) (AnalysisProfile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return AnalysisProfile{}, false
}

// UserOnly drops read-only entries.
func UserOnly(profiles []AnalysisProfile) []AnalysisProfile {
	out := make([]AnalysisProfile, 0, len(profiles))
	for _, p := range profiles {
		if !p.ReadOnly {
			out = append(out, p)
		}
	}
	return out
}

// Merge returns the bundled profiles followed by the given user profiles.
func Merge(user []AnalysisProfile) []AnalysisProfile {
	return Combine(Bundled(), user)
}

// Combine returns a new slice holding bundled followed by user.
func Combine(bundled, user []AnalysisProfile) []AnalysisProfile {
	out := make([]AnalysisProfile, 0, len(bundled)+len(user))
	out = append(out, bundled...)
	return append(out, user...)
}

// BuildLabelSelector renders the analyzer label selector for the given
// source and target technologies. Targets come first when both are set.
//
//	BuildLabelSelector(nil, nil)                   // (discovery)
//	BuildLabelSelector(nil, []string{"t1"})        // (konveyor.io/target=t1) || (discovery)
//	BuildLabelSelector([]string{"s1"}, []string{"t1"})
//	// (konveyor.io/target=t1) && (konveyor.io/source=s1) || (discovery)
func BuildLabelSelector(sources, targets []string) string {
	sourcesPart := joinTerms("konveyor.io/source=", sources)
	targetsPart := joinTerms("konveyor.io/target=", targets)

	switch {
	case sourcesPart == "" && targetsPart == "":
		return "(discovery)"
	case sourcesPart == "":
		return "(" + targetsPart + ") || (discovery)"
	case targetsPart == "":
		return "(" + sourcesPart + ") || (discovery)"
	default:
		return "(" + targetsPart + ") && (" + sourcesPart + ") || (discovery)"
	}
}

func joinTerms(prefix string, values []string) string {
	terms := make([]string, 0, len(values))
	for _, v := range values {
		terms = append(terms, prefix+v)
	}
	return strings.Join(terms, " || ")
}
