package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianshen/aksmigrate/internal/deploy"
	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/profile"
)

var errNameRequired = errors.New("a profile name is required")

// Overlay is a Huh form shown over the wizard. Action builds the action to
// dispatch once the form completes.
type Overlay struct {
	form   *huh.Form
	action func() dispatch.Action
}

// Form returns the underlying huh.Form for Bubble Tea embedding.
func (o *Overlay) Form() *huh.Form { return o.form }

// SetForm replaces the underlying huh.Form. This is used when the form's
// Update method returns a new Form instance.
func (o *Overlay) SetForm(f *huh.Form) { o.form = f }

// IsCompleted returns true if the form has been submitted.
func (o *Overlay) IsCompleted() bool { return o.form.State == huh.StateCompleted }

// IsAborted returns true if the form has been cancelled.
func (o *Overlay) IsAborted() bool { return o.form.State == huh.StateAborted }

// Action returns the action for the submitted values.
func (o *Overlay) Action() dispatch.Action { return o.action() }

// ProfileValues are the fields of a new profile.
type ProfileValues struct {
	Name            string
	Targets         []string
	Sources         []string
	CustomSelector  string
	UseDefaultRules bool
}

// Profile builds the profile the values describe. A custom selector wins
// over the one built from sources and targets.
func (v ProfileValues) Profile() profile.AnalysisProfile {
	selector := strings.TrimSpace(v.CustomSelector)
	if selector == "" {
		selector = profile.BuildLabelSelector(v.Sources, v.Targets)
	}
	return profile.AnalysisProfile{
		Name:            strings.TrimSpace(v.Name),
		Targets:         v.Targets,
		Sources:         v.Sources,
		LabelSelector:   selector,
		CustomRules:     []string{},
		UseDefaultRules: v.UseDefaultRules,
	}
}

// NewProfileForm creates the form for adding a profile.
func NewProfileForm(targets, sources []string) *Overlay {
	v := &ProfileValues{UseDefaultRules: true}

	targetOpts := make([]huh.Option[string], len(targets))
	for i, t := range targets {
		targetOpts[i] = huh.NewOption(t, t)
	}
	sourceOpts := make([]huh.Option[string], len(sources))
	for i, s := range sources {
		sourceOpts[i] = huh.NewOption(s, s)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&v.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errNameRequired
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Use default rules").
				Value(&v.UseDefaultRules),
		).Title("Profile"),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Targets").
				Options(targetOpts...).
				Value(&v.Targets),
			huh.NewMultiSelect[string]().
				Title("Sources").
				Options(sourceOpts...).
				Value(&v.Sources),
			huh.NewInput().
				Title("Label selector").
				Description("Leave empty to build it from targets and sources").
				Value(&v.CustomSelector),
		).Title("Scope"),
	)

	return &Overlay{
		form: form,
		action: func() dispatch.Action {
			return dispatch.AddProfile{Profile: v.Profile()}
		},
	}
}

// NewDeployForm creates the form choosing the deployment target and the
// stakeholders, prefilled from the current step data.
func NewDeployForm(target string, stakeholders []string) *Overlay {
	if target == "" {
		target = deploy.Targets[0].ID
	}
	chosen := append([]string(nil), stakeholders...)

	targetOpts := make([]huh.Option[string], len(deploy.Targets))
	for i, t := range deploy.Targets {
		targetOpts[i] = huh.NewOption(t.Name, t.ID)
	}
	roleOpts := make([]huh.Option[string], len(deploy.Roles))
	for i, r := range deploy.Roles {
		roleOpts[i] = huh.NewOption(r.Name, r.ID)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Deployment target").
				Options(targetOpts...).
				Value(&target),
			huh.NewMultiSelect[string]().
				Title("Stakeholders").
				Options(roleOpts...).
				Value(&chosen),
		).Title("Deploy"),
	)

	return &Overlay{
		form: form,
		action: func() dispatch.Action {
			return dispatch.DeployApplication{Target: target, Stakeholders: chosen}
		},
	}
}
