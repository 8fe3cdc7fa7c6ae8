// Package workspace is the host file system surface: bounded file search,
// opening files in the user's editor and URLs in the browser.
package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// MaxSearchResults caps FindFiles.
const MaxSearchResults = 10

// DefaultExcludes are skipped by every search in addition to .gitignore.
var DefaultExcludes = []string{
	"target/",
	"build/",
	"node_modules/",
	"dist/",
	"out/",
	".git/",
	".aksmigrate/",
	".idea/",
	".vscode/",
}

var errLimitReached = errors.New("search limit reached")

// Searcher finds files by base name under a root directory.
type Searcher struct {
	root    string
	matcher *ignore.GitIgnore
}

// NewSearcher compiles excludes together with the root's .gitignore.
func NewSearcher(root string, excludes []string) *Searcher {
	patterns := append([]string{}, DefaultExcludes...)
	patterns = append(patterns, excludes...)

	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		patterns = append(patterns, strings.Split(string(data), "\n")...)
	}

	return &Searcher{root: root, matcher: ignore.CompileIgnoreLines(patterns...)}
}

// FindFiles returns up to limit paths whose base name equals name, sorted.
// A non-positive limit means MaxSearchResults.
func (s *Searcher) FindFiles(ctx context.Context, name string, limit int) ([]string, error) {
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}

	var found []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil || rel == "." {
			return nil
		}

		match := filepath.ToSlash(rel)
		if d.IsDir() {
			match += "/"
		}
		if s.matcher.MatchesPath(match) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && d.Name() == name {
			found = append(found, path)
			if len(found) >= limit {
				return errLimitReached
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

// Rel returns path relative to the search root for display.
func (s *Searcher) Rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}
