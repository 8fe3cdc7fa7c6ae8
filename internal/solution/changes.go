package solution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

// Stage writes the modified content of fc under dir and returns the pending
// local change pointing at it, with a unified diff when git is available.
func Stage(ctx context.Context, dir string, fc state.FileChange) (state.LocalChange, error) {
	sum := sha256.Sum256([]byte(fc.Path))
	target := filepath.Join(dir, hex.EncodeToString(sum[:8]), filepath.Base(fc.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return state.LocalChange{}, fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.WriteFile(target, []byte(fc.Modified), 0o644); err != nil {
		return state.LocalChange{}, fmt.Errorf("stage %s: %w", fc.Path, err)
	}

	diff, _ := Diff(ctx, fc.Path, target)
	return state.LocalChange{
		OriginalURI: workspace.URIFromPath(fc.Path),
		ModifiedURI: workspace.URIFromPath(target),
		Diff:        diff,
		State:       state.ChangePending,
	}, nil
}

// Diff returns the unified diff between two files using git's no-index
// mode, which exits 1 when the files differ.
func Diff(ctx context.Context, original, modified string) (string, error) {
	if _, err := os.Stat(original); errors.Is(err, os.ErrNotExist) {
		original = os.DevNull
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-index", "--no-color", "--", original, modified)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() == 1 {
			return string(out), nil
		}
		stderr := ""
		if ee != nil {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("git diff failed: %s: %w", stderr, err)
	}
	return string(out), nil
}

// Apply copies the staged file over the original.
func Apply(change state.LocalChange) error {
	src := workspace.PathFromURI(change.ModifiedURI)
	dst := workspace.PathFromURI(change.OriginalURI)

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read staged change: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(dst); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := os.WriteFile(dst, data, mode); err != nil {
		return fmt.Errorf("apply change to %s: %w", dst, err)
	}
	return nil
}

// Discard removes the staged file. A missing file is not an error.
func Discard(change state.LocalChange) error {
	err := os.Remove(workspace.PathFromURI(change.ModifiedURI))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard change: %w", err)
	}
	return nil
}

// MarkState sets the state of every change matching originalURI and
// modifiedURI. It reports whether any matched.
func MarkState(changes []state.LocalChange, target state.LocalChange, st state.ChangeState) bool {
	found := false
	for i := range changes {
		if changes[i].OriginalURI == target.OriginalURI && changes[i].ModifiedURI == target.ModifiedURI {
			changes[i].State = st
			found = true
		}
	}
	return found
}

// ResolveIncidents flips Resolved on every incident that belongs to the
// applied file and whose key is in scope. It returns the number flipped.
func ResolveIncidents(incidents []state.EnhancedIncident, scope *state.Scope, applied state.LocalChange) int {
	if scope == nil {
		return 0
	}
	path := workspace.PathFromURI(applied.OriginalURI)
	keys := map[string]bool{}
	for _, inc := range scope.Incidents {
		if workspace.PathFromURI(inc.URI) == path {
			keys[inc.Key()] = true
		}
	}

	n := 0
	for i := range incidents {
		if keys[incidents[i].Key()] && !incidents[i].Resolved {
			incidents[i].Resolved = true
			n++
		}
	}
	return n
}
