package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/pkg/browser"
	"mvdan.cc/sh/v3/shell"
)

// Editor opens files at a line in an external editor.
type Editor struct {
	command string
}

// NewEditor returns an Editor running command. The command may carry
// arguments; "code" gets "-g file:line", anything else gets "+line file".
func NewEditor(command string) *Editor {
	if command == "" {
		command = "code"
	}
	return &Editor{command: command}
}

// Open opens path at line (1-based; 0 means no line). file:// URIs are
// accepted.
func (e *Editor) Open(ctx context.Context, path string, line int) error {
	path = PathFromURI(path)

	fields, err := shell.Fields(e.command, nil)
	if err != nil {
		return fmt.Errorf("parse editor command: %w", err)
	}
	if len(fields) == 0 {
		return errors.New("empty editor command")
	}

	args := append([]string{}, fields[1:]...)
	switch {
	case strings.HasSuffix(fields[0], "code") && line > 0:
		args = append(args, "-g", fmt.Sprintf("%s:%d", path, line))
	case line > 0:
		args = append(args, fmt.Sprintf("+%d", line), path)
	default:
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, fields[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if len(out) > 0 {
			return fmt.Errorf("open %s: %w: %s", path, err, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// OpenURL opens an http(s) URL in the user's browser.
func OpenURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: only http and https are supported", raw)
	}
	return browser.OpenURL(u.String())
}

// PathFromURI turns a file:// URI into a path and returns anything else
// unchanged.
func PathFromURI(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimPrefix(s, "file://")
	}
	return u.Path
}

// URIFromPath turns an absolute path into a file:// URI.
func URIFromPath(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}
