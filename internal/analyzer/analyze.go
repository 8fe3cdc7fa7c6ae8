package analyzer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/julianshen/aksmigrate/internal/state"
	"gopkg.in/yaml.v3"
)

// OutputFile is the rule set file the analyzer writes into its output dir.
const OutputFile = "output.yaml"

// Request describes one analysis run.
type Request struct {
	Root            string
	OutputDir       string
	LabelSelector   string
	Rules           []string
	UseDefaultRules bool
}

// Args returns the analyzer command line for req, without the binary.
func Args(req Request, extra []string) []string {
	args := []string{
		"analyze",
		"--input", req.Root,
		"--output", req.OutputDir,
		"--overwrite",
		"--mode", "source-only",
	}
	if sel := strings.TrimSpace(req.LabelSelector); sel != "" {
		args = append(args, "--label-selector", sel)
	}
	for _, r := range req.Rules {
		args = append(args, "--rules", r)
	}
	if !req.UseDefaultRules {
		args = append(args, "--enable-default-rulesets=false")
	}
	return append(args, extra...)
}

// Analyze runs the analyzer for req and parses its rule set output.
// progress, when not nil, receives coarse percentages.
func (s *Server) Analyze(ctx context.Context, req Request, progress func(int)) ([]state.RuleSet, error) {
	s.mu.Lock()
	bin, running, extra := s.resolved, s.running, s.args
	s.mu.Unlock()
	if !running {
		return nil, ErrNotRunning
	}
	if progress == nil {
		progress = func(int) {}
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis output dir: %w", err)
	}
	progress(10)

	cmd := exec.CommandContext(ctx, bin, Args(req, extra)...)
	cmd.Dir = req.Root
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 2000 {
			msg = msg[len(msg)-2000:]
		}
		return nil, fmt.Errorf("analyzer failed: %s: %w", msg, err)
	}
	progress(80)

	data, err := os.ReadFile(filepath.Join(req.OutputDir, OutputFile))
	if err != nil {
		return nil, fmt.Errorf("read analysis output: %w", err)
	}
	ruleSets, err := ParseOutput(data)
	if err != nil {
		return nil, err
	}
	progress(100)
	return ruleSets, nil
}

// ParseOutput decodes the analyzer's YAML rule set list.
func ParseOutput(data []byte) ([]state.RuleSet, error) {
	var ruleSets []state.RuleSet
	if err := yaml.Unmarshal(data, &ruleSets); err != nil {
		return nil, fmt.Errorf("parse analysis output: %w", err)
	}
	if ruleSets == nil {
		ruleSets = []state.RuleSet{}
	}
	return ruleSets, nil
}

// Enhance flattens rule sets into incidents annotated with their
// violation. Order is rule set order, then violation id, then incident
// order. Duplicate keys keep the first occurrence.
func Enhance(ruleSets []state.RuleSet) []state.EnhancedIncident {
	out := []state.EnhancedIncident{}
	seen := map[string]bool{}
	for _, rs := range ruleSets {
		ids := make([]string, 0, len(rs.Violations))
		for id := range rs.Violations {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			v := rs.Violations[id]
			for _, inc := range v.Incidents {
				e := state.EnhancedIncident{
					Incident:             inc,
					ViolationID:          id,
					RuleSetName:          rs.Name,
					ViolationDescription: v.Description,
					ViolationCategory:    v.Category,
				}
				if seen[e.Key()] {
					continue
				}
				seen[e.Key()] = true
				out = append(out, e)
			}
		}
	}
	return out
}
