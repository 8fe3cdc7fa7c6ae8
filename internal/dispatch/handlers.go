package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianshen/aksmigrate/internal/build"
	"github.com/julianshen/aksmigrate/internal/commands"
	"github.com/julianshen/aksmigrate/internal/deploy"
	"github.com/julianshen/aksmigrate/internal/solution"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

func (d *Dispatcher) applyFile(ctx context.Context, change state.LocalChange) error {
	if err := d.deps.Commands.Execute(ctx, commands.ApplyFile, change); err != nil {
		d.log.Warn().Err(err).Str("file", change.OriginalURI).Msg("apply failed")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to apply changes: %v", err))
		return err
	}

	d.Mutate(func(draft *state.ExtensionData) {
		solution.MarkState(draft.LocalChanges, change, state.ChangeApplied)
		solution.ResolveIncidents(draft.EnhancedIncidents, draft.SolutionScope, change)
		draft.WizardState.StepData.Resolution.SolutionApplied = true
	})
	return nil
}

func (d *Dispatcher) discardFile(ctx context.Context, change state.LocalChange) error {
	if err := d.deps.Commands.Execute(ctx, commands.DiscardFile, change); err != nil {
		d.log.Warn().Err(err).Str("file", change.OriginalURI).Msg("discard failed")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to discard changes: %v", err))
		return err
	}

	d.Mutate(func(draft *state.ExtensionData) {
		solution.MarkState(draft.LocalChanges, change, state.ChangeDiscarded)
	})
	return nil
}

func (d *Dispatcher) openURL(url string) error {
	open := d.deps.OpenURL
	if open == nil {
		open = workspace.OpenURL
	}
	if err := open(url); err != nil {
		d.log.Warn().Err(err).Str("url", url).Msg("open url")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to open URL: %v", err))
		return err
	}
	return nil
}

func (d *Dispatcher) openFile(ctx context.Context, file string, line int) error {
	if d.deps.Editor == nil {
		err := errors.New("no editor configured")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to open file: %v", err))
		return err
	}
	if err := d.deps.Editor.Open(ctx, file, line); err != nil {
		d.log.Warn().Err(err).Str("file", file).Msg("open file")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to open file: %v", err))
		return err
	}
	return nil
}

func (d *Dispatcher) findAndOpenFile(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" || d.deps.Files == nil {
		d.deps.Window.ShowWarning("No file name given to search for.")
		return
	}

	found, err := d.deps.Files.FindFiles(ctx, name, workspace.MaxSearchResults)
	if err != nil {
		d.log.Warn().Err(err).Str("file", name).Msg("file search")
		d.deps.Window.ShowError(fmt.Sprintf("Failed to search for %s: %v", name, err))
		return
	}

	var path string
	switch len(found) {
	case 0:
		d.deps.Window.ShowWarning(fmt.Sprintf("Could not find %s in the workspace.", name))
		return
	case 1:
		path = found[0]
	default:
		items := make([]string, len(found))
		byItem := make(map[string]string, len(found))
		for i, f := range found {
			items[i] = d.deps.Files.Rel(f)
			byItem[items[i]] = f
		}
		choice, ok, err := d.deps.Window.Pick(ctx, fmt.Sprintf("Multiple %s files found. Select one to open", name), items)
		if err != nil {
			d.log.Warn().Err(err).Msg("file pick")
			return
		}
		if !ok {
			return
		}
		if path, ok = byItem[choice]; !ok {
			d.log.Warn().Str("choice", choice).Msg("pick returned an unknown item")
			return
		}
	}

	_ = d.openFile(ctx, path, 0)
}

func (d *Dispatcher) buildQuarkus(ctx context.Context) {
	if d.deps.Builder == nil {
		d.deps.Window.ShowError("No build runner is configured.")
		return
	}

	root := d.deps.Container.State().WorkspaceRoot
	proj, err := build.Detect(root)
	if err != nil {
		d.log.Warn().Err(err).Msg("detecting project type")
	}

	started := false
	d.Mutate(func(draft *state.ExtensionData) {
		c := &draft.WizardState.StepData.Containerization
		c.IsQuarkusProject = proj.IsQuarkus
		c.HasKubernetesExtension = proj.HasKubernetesExtension
		if c.BuildInProgress || !proj.IsQuarkus {
			return
		}
		c.BuildInProgress = true
		c.BuildProgress = 0
		c.BuildOutcome = ""
		c.BuildError = ""
		c.Manifests = nil
		started = true
	})
	if !started {
		if !proj.IsQuarkus {
			d.deps.Window.ShowWarning("No Quarkus project found in the workspace.")
		} else {
			d.deps.Window.ShowWarning(build.ErrBuildInProgress.Error())
		}
		return
	}

	res, err := d.deps.Builder.Run(ctx, root, func(pct int) {
		d.Mutate(func(draft *state.ExtensionData) {
			draft.WizardState.StepData.Containerization.BuildProgress = pct
		})
	})
	if errors.Is(err, build.ErrBuildInProgress) {
		d.deps.Window.ShowWarning(err.Error())
		return
	}
	if err != nil {
		res = build.Result{Outcome: state.BuildFailure, ExitCode: -1, Err: err}
	}

	d.Mutate(func(draft *state.ExtensionData) {
		c := &draft.WizardState.StepData.Containerization
		c.BuildInProgress = false
		c.BuildProgress = 100
		c.BuildOutcome = res.Outcome
		c.Manifests = res.Manifests
		c.BuildError = ""
		if res.Outcome == state.BuildFailure {
			c.BuildError = res.Message()
		}
		c.K8sConfigsGenerated = res.Outcome == state.BuildSuccessWithManifests
		c.DeploymentReady = c.K8sConfigsGenerated
	})

	switch res.Outcome {
	case state.BuildSuccessWithManifests:
		d.deps.Window.ShowInfo(res.Message())
	case state.BuildSuccessNoManifests:
		d.deps.Window.ShowWarning(res.Message())
	default:
		d.deps.Window.ShowError(res.Message())
	}
}

func (d *Dispatcher) deployApplication(target string, stakeholders []string) error {
	req := deploy.Request{Target: target, Stakeholders: stakeholders}
	quarkus := d.deps.Container.State().WizardState.StepData.Containerization.IsQuarkusProject

	plan, err := deploy.Plan(req, quarkus, d.deps.ManifestDir)
	if err != nil {
		msg := "Cannot deploy: " + err.Error()
		if errors.Is(err, deploy.ErrNoStakeholders) {
			msg = "Select at least one stakeholder before deploying."
		}
		d.deps.Window.ShowError(msg)
		return err
	}

	d.Mutate(func(draft *state.ExtensionData) {
		dep := &draft.WizardState.StepData.Deploy
		dep.DeploymentTarget = target
		dep.SelectedStakeholders = append([]string{}, stakeholders...)
		dep.Plan = plan
		dep.DeploymentComplete = true
	})

	t, _ := deploy.FindTarget(target)
	d.deps.Window.ShowInfo(fmt.Sprintf("Deployment plan ready for %s (namespace %s).", t.Name, t.Namespace))
	return nil
}
