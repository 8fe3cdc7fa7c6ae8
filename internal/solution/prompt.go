// Package solution turns analysis incidents into AI-proposed file edits:
// it builds the prompt, streams the model reply, extracts per-file
// replacements and stages, applies or discards them on disk.
package solution

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/julianshen/aksmigrate/internal/workspace"
	"github.com/sourcegraph/conc/pool"
)

const (
	maxFileBytes  = 256 * 1024
	contextRadius = 10
	readers       = 4
)

const systemPrompt = `You are a migration assistant helping move Java applications to Azure Kubernetes Service.
You receive analysis incidents and the full content of the affected files.
Fix every listed incident with the smallest change that keeps the application working.
For each file you change, reply with a heading "## Updated File: <path>" followed by one fenced code block
holding the complete new file content. Do not include files you did not change.
After the files, add a short "## Explanation" section.`

// ReadFiles reads the files referenced by incidents concurrently. Files that
// cannot be read are reported in errs and left out of the result.
func ReadFiles(ctx context.Context, incidents []state.EnhancedIncident) (files map[string]string, errs []string) {
	paths := uniquePaths(incidents)
	files = make(map[string]string, len(paths))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(readers)
	for _, path := range paths {
		path := path
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			data, err := os.ReadFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("read %s: %v", path, err))
				return
			}
			if len(data) > maxFileBytes {
				errs = append(errs, fmt.Sprintf("skip %s: larger than %d bytes", path, maxFileBytes))
				return
			}
			files[path] = string(data)
		})
	}
	p.Wait()

	sort.Strings(errs)
	return files, errs
}

func uniquePaths(incidents []state.EnhancedIncident) []string {
	seen := map[string]bool{}
	var paths []string
	for _, inc := range incidents {
		path := workspace.PathFromURI(inc.URI)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// BuildPrompt renders the user prompt for incidents with the given effort
// and file contents keyed by path.
func BuildPrompt(incidents []state.EnhancedIncident, effort string, files map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Effort level: %s\n\n", effort)

	byFile := map[string][]state.EnhancedIncident{}
	for _, inc := range incidents {
		path := workspace.PathFromURI(inc.URI)
		byFile[path] = append(byFile[path], inc)
	}
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Fprintf(&sb, "# File: %s\n\n## Incidents\n", path)
		for _, inc := range byFile[path] {
			line := "unknown"
			if inc.LineNumber != nil {
				line = fmt.Sprint(*inc.LineNumber)
			}
			fmt.Fprintf(&sb, "- [%s] line %s: %s\n", inc.ViolationID, line, strings.TrimSpace(inc.Message))
			if inc.ViolationDescription != "" {
				fmt.Fprintf(&sb, "  Rule: %s\n", inc.ViolationDescription)
			}
		}
		if content, ok := files[path]; ok {
			fmt.Fprintf(&sb, "\n## Content\n```%s\n%s\n```\n", fenceLang(path), strings.TrimRight(content, "\n"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ContextSnippet returns the lines around line (1-based) in content,
// prefixed with their numbers. A nil line returns the first lines.
func ContextSnippet(content string, line *int) string {
	lines := strings.Split(content, "\n")
	center := 1
	if line != nil && *line > 0 {
		center = *line
	}
	start := center - contextRadius
	if start < 1 {
		start = 1
	}
	end := center + contextRadius
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		marker := " "
		if line != nil && i == *line {
			marker = ">"
		}
		fmt.Fprintf(&sb, "%s%5d | %s\n", marker, i, lines[i-1])
	}
	return sb.String()
}

// BuildContextPrompt renders the prompt for a single incident with the code
// around it in addition to the whole file.
func BuildContextPrompt(inc state.EnhancedIncident, effort, content string) string {
	path := workspace.PathFromURI(inc.URI)
	var sb strings.Builder
	sb.WriteString(BuildPrompt([]state.EnhancedIncident{inc}, effort, map[string]string{path: content}))
	fmt.Fprintf(&sb, "## Surrounding code\n```%s\n%s```\n", fenceLang(path), ContextSnippet(content, inc.LineNumber))
	return sb.String()
}

func fenceLang(path string) string {
	switch {
	case strings.HasSuffix(path, ".java"):
		return "java"
	case strings.HasSuffix(path, ".xml"):
		return "xml"
	case strings.HasSuffix(path, ".properties"):
		return "properties"
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return "yaml"
	default:
		return ""
	}
}
