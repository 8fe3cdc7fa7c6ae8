package build

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

var docSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// FindManifests returns "file: Kind/name" for every valid Kubernetes object
// found in YAML or JSON files directly under dir. A missing dir yields no
// manifests and no error.
func FindManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}

	var found []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml", ".json":
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		objs, err := ParseManifests(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
		for _, obj := range objs {
			found = append(found, fmt.Sprintf("%s: %s/%s", e.Name(), obj.GetKind(), obj.GetName()))
		}
	}
	sort.Strings(found)
	return found, errors.Join(errs...)
}

// ParseManifests decodes a possibly multi-document YAML stream into
// Kubernetes objects. Empty documents are skipped; a document without
// apiVersion or kind is an error.
func ParseManifests(data []byte) ([]*unstructured.Unstructured, error) {
	var objs []*unstructured.Unstructured
	for i, doc := range docSeparator.Split(string(data), -1) {
		if len(bytes.TrimSpace([]byte(doc))) == 0 {
			continue
		}
		js, err := yaml.YAMLToJSON([]byte(doc))
		if err != nil {
			return objs, fmt.Errorf("document %d: %w", i, err)
		}
		if string(js) == "null" {
			continue
		}

		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(js); err != nil {
			return objs, fmt.Errorf("document %d: %w", i, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}
