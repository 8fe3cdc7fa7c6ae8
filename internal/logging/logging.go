// Package logging builds the zerolog loggers used across the process.
// Stdout belongs to the stdio transport, so console output goes to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Level is the minimum level written anywhere. Empty means info.
	Level string
	// Console receives human-readable output. Nil disables it.
	Console io.Writer
	// ConsoleLevel raises the threshold for the console only.
	ConsoleLevel string
	// File, when set, receives JSON lines at Level.
	File string
}

// New returns a logger for opts and a closer for the log file, if any.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.Console != nil {
		consoleLevel := level
		if opts.ConsoleLevel != "" {
			if consoleLevel, err = ParseLevel(opts.ConsoleLevel); err != nil {
				return zerolog.Nop(), nopCloser{}, err
			}
		}
		writers = append(writers, minLevelWriter{
			Writer: zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.RFC3339},
			Min:    consoleLevel,
		})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// minLevelWriter drops events below Min.
type minLevelWriter struct {
	io.Writer
	Min zerolog.Level
}

func (w minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.Min {
		return len(p), nil
	}
	return w.Write(p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
