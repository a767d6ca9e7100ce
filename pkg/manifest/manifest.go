// Package manifest finds output paths in Argo workflow status documents
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultOutputParam is the output parameter holding a step's zarr location
const DefaultOutputParam = "out-zarr"

var ErrNoMatch = errors.New("no node in the manifest matches")

// AmbiguousMatchError is returned when several nodes match a pattern
type AmbiguousMatchError struct {
	Pattern string
	FirstID string
	Count   int
}

func (e *AmbiguousMatchError) Error() string {
	return "could not identify a unique node in the manifest, id of the first match: " + e.FirstID
}

// Parameter is a named step output
type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Node is one step of a workflow run
type Node struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Phase   string `json:"phase" yaml:"phase"`
	Outputs struct {
		Parameters []Parameter `json:"parameters" yaml:"parameters"`
	} `json:"outputs" yaml:"outputs"`
}

// Manifest is the part of a workflow document the tools look at
type Manifest struct {
	// OutputParam names the parameter OutputPath reads; Parse sets it to
	// DefaultOutputParam
	OutputParam string `json:"-" yaml:"-"`

	Status struct {
		Nodes map[string]Node `json:"nodes" yaml:"nodes"`
	} `json:"status" yaml:"status"`
}

// Output is the result of a lookup
type Output struct {
	NodeID string
	Path   string
}

// Parse reads a JSON or YAML workflow document
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{OutputParam: DefaultOutputParam}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parsing manifest json: %w", err)
		}
		return m, nil
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest yaml: %w", err)
	}
	return m, nil
}

// OutputPath returns the output path of the single succeeded pod whose
// name matches pattern, read from the OutputParam parameter. A matching pod
// without that parameter yields an empty path.
func (m *Manifest) OutputPath(pattern string) (Output, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Output{}, fmt.Errorf("node pattern: %w", err)
	}

	keys := make([]string, 0, len(m.Status.Nodes))
	for k := range m.Status.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matches []Node
	for _, k := range keys {
		n := m.Status.Nodes[k]
		if n.Type == "Pod" && n.Phase == "Succeeded" && re.MatchString(n.Name) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return Output{}, fmt.Errorf("%q: %w", pattern, ErrNoMatch)
	case 1:
	default:
		return Output{}, &AmbiguousMatchError{Pattern: pattern, FirstID: matches[0].ID, Count: len(matches)}
	}

	param := m.OutputParam
	if param == "" {
		param = DefaultOutputParam
	}
	out := Output{NodeID: matches[0].ID}
	for _, p := range matches[0].Outputs.Parameters {
		if p.Name == param {
			out.Path = p.Value
			break
		}
	}
	return out, nil
}
