// Package analyzer drives the external static analyzer: it mirrors the
// server lifecycle, runs analyses for the active profile, parses rule set
// output and persists results between sessions.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/rs/zerolog"
)

// ErrNotRunning is returned by Analyze before Start has succeeded.
var ErrNotRunning = errors.New("analyzer server is not running")

const stopGrace = 5 * time.Second

// Server owns the analyzer binary and, when configured, the long-lived RPC
// server process next to it.
type Server struct {
	binary  string
	rpcPath string
	args    []string
	log     zerolog.Logger

	mu       sync.Mutex
	resolved string
	running  bool
	stopping bool
	cmd      *exec.Cmd
	done     chan struct{}
}

// NewServer creates a Server for the analyzer binary and optional RPC
// server path. extraArgs are appended to every analysis run.
func NewServer(binary, rpcPath string, extraArgs []string, log zerolog.Logger) *Server {
	return &Server{binary: binary, rpcPath: rpcPath, args: extraArgs, log: log}
}

// SetBinaries replaces the analyzer and RPC server paths. It takes effect on
// the next Start.
func (s *Server) SetBinaries(binary, rpcPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if binary != "" {
		s.binary = binary
	}
	if rpcPath != "" {
		s.rpcPath = rpcPath
	}
}

// Running reports whether Start has completed and Stop has not been called.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Binary returns the resolved analyzer path, or "" before Start.
func (s *Server) Binary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Start brings the analyzer up and calls report for every lifecycle
// transition. A missing binary or a failed RPC spawn ends in
// ServerStartFailed. If the RPC server later exits on its own, report is
// called once more with ServerStartFailed.
func (s *Server) Start(ctx context.Context, report func(state.ServerState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		report(state.ServerRunning)
		return nil
	}

	report(state.ServerStarting)
	bin, err := exec.LookPath(s.binary)
	if err != nil {
		report(state.ServerStartFailed)
		return fmt.Errorf("locate analyzer %q: %w", s.binary, err)
	}
	if err := ctx.Err(); err != nil {
		report(state.ServerStartFailed)
		return err
	}

	report(state.ServerReadyToInitialize)
	report(state.ServerInitializing)

	if s.rpcPath != "" {
		if err := CheckExecutable(s.rpcPath); err != nil {
			report(state.ServerStartFailed)
			return fmt.Errorf("rpc server: %w", err)
		}
		// Not bound to ctx: the server outlives the request that started it.
		cmd := exec.Command(s.rpcPath, "--analyzer-binary", bin)
		cmd.Stdout = logWriter{log: s.log, stream: "stdout"}
		cmd.Stderr = logWriter{log: s.log, stream: "stderr"}
		if err := cmd.Start(); err != nil {
			report(state.ServerStartFailed)
			return fmt.Errorf("start rpc server: %w", err)
		}
		s.cmd = cmd
		s.done = make(chan struct{})
		s.stopping = false
		go s.wait(cmd, s.done, report)
	}

	s.resolved = bin
	s.running = true
	s.log.Info().Str("binary", bin).Str("rpc", s.rpcPath).Msg("analyzer started")
	report(state.ServerRunning)
	return nil
}

func (s *Server) wait(cmd *exec.Cmd, done chan struct{}, report func(state.ServerState)) {
	err := cmd.Wait()
	close(done)

	s.mu.Lock()
	unexpected := !s.stopping && s.cmd == cmd
	if unexpected {
		s.running = false
		s.cmd = nil
	}
	s.mu.Unlock()

	if unexpected {
		s.log.Warn().Err(err).Msg("rpc server exited")
		report(state.ServerStartFailed)
	}
}

// Stop terminates the RPC server, if any, and marks the analyzer stopped.
func (s *Server) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.stopping = true
	s.running = false
	s.cmd = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill rpc server: %w", err)
		}
		<-done
	}
	s.log.Info().Msg("analyzer stopped")
	return nil
}

// logWriter forwards child process output to the logger line by line.
type logWriter struct {
	log    zerolog.Logger
	stream string
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug().Str("stream", w.stream).Msg(string(p))
	return len(p), nil
}
