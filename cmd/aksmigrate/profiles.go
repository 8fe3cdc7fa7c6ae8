package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/julianshen/aksmigrate/internal/dispatch"
	"github.com/julianshen/aksmigrate/internal/extension"
	"github.com/julianshen/aksmigrate/internal/profile"
)

// cliWindow prints notifications for one-shot commands. It cannot ask
// questions, so picks are always dismissed.
type cliWindow struct {
	w io.Writer
}

func (c cliWindow) ShowError(msg string)   { fmt.Fprintf(c.w, "error: %s\n", msg) }
func (c cliWindow) ShowWarning(msg string) { fmt.Fprintf(c.w, "warning: %s\n", msg) }
func (c cliWindow) ShowInfo(msg string)    { fmt.Fprintln(c.w, msg) }

func (c cliWindow) Pick(_ context.Context, title string, _ []string) (string, bool, error) {
	fmt.Fprintf(c.w, "warning: %s needs the interactive wizard\n", title)
	return "", false, nil
}

// withExtension activates the extension for one command, runs fn and waits
// for the work it started.
func withExtension(cmd *cobra.Command, fn func(ext *extension.Extension) error) error {
	sess, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	ext, err := sess.activate(cmd.Context(), extension.Options{Window: cliWindow{w: cmd.ErrOrStderr()}})
	if err != nil {
		return err
	}
	defer ext.Dispose()

	err = fn(ext)
	ext.Dispatcher.Wait()
	return err
}

// handle dispatches a. The window has already reported any failure.
func handle(cmd *cobra.Command, ext *extension.Extension, a dispatch.Action) error {
	if err := ext.Dispatcher.Handle(cmd.Context(), a); err != nil {
		return errReported
	}
	return nil
}

// resolveProfile finds a profile by id, falling back to a case-insensitive
// name match.
func resolveProfile(profiles []profile.AnalysisProfile, ref string) (profile.AnalysisProfile, error) {
	if p, ok := profile.Find(profiles, ref); ok {
		return p, nil
	}
	if p, ok := profile.FindByName(profiles, ref); ok {
		return p, nil
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return profile.AnalysisProfile{}, fmt.Errorf("no profile with id or name %q", ref)
}

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage analysis profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis profiles; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withExtension(cmd, func(ext *extension.Extension) error {
				return printProfiles(cmd.OutOrStdout(), ext)
			})
		},
	}

	var (
		targets     []string
		sources     []string
		selector    string
		noDefaults  bool
		customRules []string
	)
	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an analysis profile and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if customRules == nil {
				customRules = []string{}
			}
			sel := selector
			if sel == "" {
				sel = profile.BuildLabelSelector(sources, targets)
			}
			p := profile.AnalysisProfile{
				ID:              profile.NewID(),
				Name:            args[0],
				Targets:         targets,
				Sources:         sources,
				LabelSelector:   sel,
				CustomRules:     customRules,
				UseDefaultRules: !noDefaults,
			}
			return withExtension(cmd, func(ext *extension.Extension) error {
				if err := handle(cmd, ext, dispatch.AddProfile{Profile: p}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added profile %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "migration target (repeatable)")
	addCmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "migration source (repeatable)")
	addCmd.Flags().StringVar(&selector, "selector", "", "label selector (default: built from targets and sources)")
	addCmd.Flags().StringSliceVar(&customRules, "rules", nil, "custom rule file or directory (repeatable)")
	addCmd.Flags().BoolVar(&noDefaults, "no-default-rules", false, "analyze with custom rules only")

	deleteCmd := &cobra.Command{
		Use:   "delete ID|NAME",
		Short: "Delete a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExtension(cmd, func(ext *extension.Extension) error {
				p, err := resolveProfile(ext.Container.State().Profiles, args[0])
				if err != nil {
					return err
				}
				return handle(cmd, ext, dispatch.DeleteProfile{ProfileID: p.ID})
			})
		},
	}

	useCmd := &cobra.Command{
		Use:   "use ID|NAME",
		Short: "Make a profile active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExtension(cmd, func(ext *extension.Extension) error {
				p, err := resolveProfile(ext.Container.State().Profiles, args[0])
				if err != nil {
					return err
				}
				if err := handle(cmd, ext, dispatch.SetActiveProfile{ProfileID: p.ID}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", p.Name)
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, deleteCmd, useCmd)
	return cmd
}

func printProfiles(w io.Writer, ext *extension.Extension) error {
	d := ext.Container.State()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tSELECTOR\tRULES")
	for _, p := range d.Profiles {
		mark := ""
		if p.ID == d.ActiveProfileID {
			mark = "*"
		}
		name := p.Name
		if p.ReadOnly {
			name += " (built in)"
		}
		rules := fmt.Sprintf("%d custom", len(p.CustomRules))
		if p.UseDefaultRules {
			rules += " + default"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, p.ID, name, p.LabelSelector, rules)
	}
	return tw.Flush()
}
