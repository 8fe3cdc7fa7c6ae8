package solution

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
)

var updatedFileHeading = regexp.MustCompile("(?m)^#{1,6}\\s*Updated File:\\s*`?([^`\\n]+?)`?\\s*$")

// ParseChanges extracts the "Updated File" sections of a model reply.
// Relative paths are resolved against root. Original content comes from
// files when present. Sections without a fenced block are skipped, and a
// later section for the same path replaces an earlier one. Paths that
// resolve outside root are dropped and reported in rejected.
func ParseChanges(reply, root string, files map[string]string) (changes []state.FileChange, rejected []string) {
	matches := updatedFileHeading.FindAllStringSubmatchIndex(reply, -1)

	index := map[string]int{}
	for i, m := range matches {
		raw := strings.TrimSpace(reply[m[2]:m[3]])
		path, ok := confine(root, workspace.PathFromURI(raw))
		if !ok {
			rejected = append(rejected, fmt.Sprintf("Ignored change to %s: outside the workspace", raw))
			continue
		}

		end := len(reply)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body, ok := fencedBlock(reply[m[1]:end])
		if !ok {
			continue
		}

		fc := state.FileChange{Path: path, Original: files[path], Modified: body}
		if j, dup := index[path]; dup {
			changes[j] = fc
			continue
		}
		index[path] = len(changes)
		changes = append(changes, fc)
	}
	return changes, rejected
}

// confine resolves path against root and reports whether the result stays
// inside root. An empty root accepts any path.
func confine(root, path string) (string, bool) {
	if root == "" {
		return filepath.Clean(path), path != ""
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// fencedBlock returns the content of the first ``` block in s.
func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	rest := s[open+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	rest = rest[nl+1:]

	closing := strings.Index(rest, "\n```")
	switch {
	case closing >= 0:
		return rest[:closing+1], true
	case strings.HasPrefix(rest, "```"):
		return "", true
	default:
		return "", false
	}
}
