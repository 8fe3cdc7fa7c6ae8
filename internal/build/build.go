// Package build runs the Quarkus Kubernetes build for the containerization
// step and classifies its outcome.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/shell"

	"github.com/julianshen/aksmigrate/internal/state"
)

// Defaults used when the corresponding Options field is empty.
const (
	DefaultCommand     = "mvn clean package -DskipTests -Dquarkus.kubernetes.deploy=false"
	DefaultInterval    = time.Second
	DefaultManifestDir = "target/kubernetes"

	progressStep   = 10
	progressCap    = 90
	maxOutputBytes = 64 * 1024

	messageTailLines = 20
)

// ErrBuildInProgress is returned when Run is called while a build is running.
var ErrBuildInProgress = errors.New("a build is already in progress")

// Result is the terminal outcome of one build.
type Result struct {
	Outcome   state.BuildOutcome
	Manifests []string
	ExitCode  int
	Output    string
	Err       error
}

// Message renders the result for the user.
func (r Result) Message() string {
	switch r.Outcome {
	case state.BuildSuccessWithManifests:
		return fmt.Sprintf("Build succeeded. Generated %d Kubernetes manifest(s).", len(r.Manifests))
	case state.BuildSuccessNoManifests:
		return "Build succeeded but no Kubernetes manifests were generated. Is the quarkus-kubernetes extension installed?"
	}
	msg := fmt.Sprintf("Build failed with exit code %d.", r.ExitCode)
	if r.Err != nil {
		msg = fmt.Sprintf("Build failed: %v", r.Err)
	}
	if tail := lastLines(r.Output, messageTailLines); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

// Options configures a Runner.
type Options struct {
	Command     string
	Interval    time.Duration
	ManifestDir string
}

// Runner executes the build command. At most one build runs at a time.
type Runner struct {
	opts     Options
	log      zerolog.Logger
	inFlight atomic.Bool
}

// NewRunner returns a Runner with defaults filled in.
func NewRunner(opts Options, log zerolog.Logger) *Runner {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ManifestDir == "" {
		opts.ManifestDir = DefaultManifestDir
	}
	return &Runner{opts: opts, log: log}
}

// Running reports whether a build is in flight.
func (r *Runner) Running() bool {
	return r.inFlight.Load()
}

// Run builds the project in root. progress is called from a ticker
// goroutine with a percentage below 100 while the process runs and once
// with 100 when it ends. A start failure or non-zero exit is reported
// through Result, not the error; the error is only ErrBuildInProgress or a
// malformed command line.
func (r *Runner) Run(ctx context.Context, root string, progress func(int)) (Result, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrBuildInProgress
	}
	defer r.inFlight.Store(false)

	if progress == nil {
		progress = func(int) {}
	}

	fields, err := shell.Fields(r.opts.Command, nil)
	if err != nil {
		return Result{}, fmt.Errorf("parse build command: %w", err)
	}
	if len(fields) == 0 {
		return Result{}, errors.New("empty build command")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = root
	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	ticker := time.NewTicker(r.opts.Interval)
	done := make(chan struct{})
	exited := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			ticker.Stop()
			close(done)
			<-exited
		})
	}

	go func() {
		defer close(exited)
		pct := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if pct < progressCap {
					pct += progressStep
				}
				progress(pct)
			}
		}
	}()

	r.log.Info().Str("command", r.opts.Command).Str("dir", root).Msg("starting build")

	if err := cmd.Start(); err != nil {
		stop()
		progress(100)
		return Result{Outcome: state.BuildFailure, ExitCode: -1, Err: fmt.Errorf("start build: %w", err)}, nil
	}

	waitErr := cmd.Wait()
	stop()
	progress(100)

	res := Result{Output: out.String()}
	if waitErr != nil {
		res.Outcome = state.BuildFailure
		res.Err = waitErr
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		r.log.Warn().Err(waitErr).Int("exit_code", res.ExitCode).Msg("build failed")
		return res, nil
	}

	manifests, err := FindManifests(filepath.Join(root, r.opts.ManifestDir))
	if err != nil {
		r.log.Warn().Err(err).Msg("reading generated manifests")
	}
	res.Manifests = manifests
	if len(manifests) > 0 {
		res.Outcome = state.BuildSuccessWithManifests
	} else {
		res.Outcome = state.BuildSuccessNoManifests
	}
	return res, nil
}

// Project describes what the containerization step detected in the workspace.
type Project struct {
	IsQuarkus              bool
	HasKubernetesExtension bool
}

// Detect inspects the Maven build file in root.
func Detect(root string) (Project, error) {
	data, err := os.ReadFile(filepath.Join(root, "pom.xml"))
	if errors.Is(err, os.ErrNotExist) {
		return Project{}, nil
	}
	if err != nil {
		return Project{}, fmt.Errorf("read pom.xml: %w", err)
	}
	pom := string(data)
	return Project{
		IsQuarkus:              strings.Contains(pom, "io.quarkus"),
		HasKubernetesExtension: strings.Contains(pom, "quarkus-kubernetes"),
	}, nil
}

// tailBuffer keeps the last maxOutputBytes of process output. Build tools
// print the failure cause at the end.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if n >= maxOutputBytes {
		b.buf = append(b.buf[:0], p[n-maxOutputBytes:]...)
		return n, nil
	}
	if over := len(b.buf) + n - maxOutputBytes; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// lastLines returns the last n lines of s.
func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
