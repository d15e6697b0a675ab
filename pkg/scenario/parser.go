package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// scenarioRaw adds the fields that do not map one-to-one onto Scenario.
type scenarioRaw struct {
	Scenario     `yaml:",inline"`
	Interaction  string `yaml:"interaction"`
	ReclickIndex *int   `yaml:"reclickIndex"`
	ObserveIndex *int   `yaml:"observeIndex"`
}

// ParseFile parses a scenario file. A file may hold several scenarios
// separated by "---".
func ParseFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML content.
func Parse(data []byte, sourcePath string) ([]*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var scenarios []*Scenario
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: err.Error()}
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			continue
		}

		s, err := parseScenario(root, sourcePath)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty scenario file"}
	}
	return scenarios, nil
}

func parseScenario(node *yaml.Node, sourcePath string) (*Scenario, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "scenario must be a mapping"}
	}

	var raw scenarioRaw
	if err := node.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, node.Line, err)
	}

	kind, err := ParseInteractionKind(raw.Interaction)
	if err != nil {
		return nil, wrapParseError(sourcePath, node.Line, err)
	}

	s := raw.Scenario
	s.SourcePath = sourcePath
	s.Line = node.Line
	s.Interaction = Interaction{
		Kind:         kind,
		ReclickIndex: raw.ReclickIndex,
		ObserveIndex: raw.ObserveIndex,
	}

	if s.Target.Locator == nil {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "scenario has no target"}
	}
	return &s, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// Collect expands paths into scenario files. Directories are walked for
// .yaml/.yml files, skipping config.yaml.
func Collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if isScenarioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return base != "config"
}

// ParseFiles parses every file and filters by tags.
func ParseFiles(files []string, includeTags, excludeTags []string) ([]*Scenario, error) {
	var out []*Scenario
	for _, f := range files {
		scenarios, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		for _, s := range scenarios {
			if ShouldInclude(s, includeTags, excludeTags) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// ShouldInclude checks if a scenario should be included based on tags.
func ShouldInclude(s *Scenario, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range s.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range s.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
