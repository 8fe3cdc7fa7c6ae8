package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// ErrNotExecutable is returned for paths that are not executable files.
var ErrNotExecutable = errors.New("not an executable file")

var versionPattern = regexp.MustCompile(`v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?`)

// CheckExecutable verifies that path is a regular file with an execute bit.
func CheckExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotExecutable)
	}
	return nil
}

// CheckVersion runs "<path> version" and verifies the reported version is
// at least minVersion. An empty minVersion only checks that a version is
// reported.
func CheckVersion(ctx context.Context, path, minVersion string) (*semver.Version, error) {
	if err := CheckExecutable(path); err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, path, "version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("query version of %s: %w", path, err)
	}

	raw := versionPattern.Find(out)
	if raw == nil {
		return nil, fmt.Errorf("no version found in output of %s version", path)
	}
	v, err := semver.NewVersion(string(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}

	if minVersion == "" {
		return v, nil
	}
	minV, err := semver.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum version %q: %w", minVersion, err)
	}
	if v.LessThan(minV) {
		return v, fmt.Errorf("analyzer version %s is older than required %s", v, minV)
	}
	return v, nil
}
