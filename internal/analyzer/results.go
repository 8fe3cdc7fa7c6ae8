package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/julianshen/aksmigrate/internal/state"
)

const (
	resultPrefix = "analysis_"
	resultSuffix = ".json"
	resultStamp  = "20060102T150405.000Z"
)

// Results is one persisted analysis run.
type Results struct {
	CreatedAt         time.Time                `json:"createdAt"`
	ProfileID         string                   `json:"profileId,omitempty"`
	RuleSets          []state.RuleSet          `json:"ruleSets"`
	EnhancedIncidents []state.EnhancedIncident `json:"enhancedIncidents"`
}

// SaveResults writes r to dir as analysis_<timestamp>.json and returns the
// file path.
func SaveResults(dir string, r Results) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	path := filepath.Join(dir, resultPrefix+r.CreatedAt.UTC().Format(resultStamp)+resultSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}

// LoadLatestResults returns the newest persisted run in dir, or nil when
// there is none.
func LoadLatestResults(dir string) (*Results, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), resultPrefix) && strings.HasSuffix(e.Name(), resultSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	// The timestamp format sorts lexically.
	sort.Strings(names)

	data, err := os.ReadFile(filepath.Join(dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", names[len(names)-1], err)
	}
	return &r, nil
}
