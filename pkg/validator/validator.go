// Package validator checks scenario files before any session is opened.
// It parses every file upfront and reports all problems it finds, not just
// the first.
package validator

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File     string
	Line     int
	Scenario string
	Message  string
}

func (e *ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Scenario != "" {
		return fmt.Sprintf("%s (%s): %s", loc, e.Scenario, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of scenario files in execution order.
	Files []string
	// Scenarios holds every scenario that passed tag filtering.
	Scenarios []*scenario.Scenario
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates scenario files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}

	files, err := scenario.Collect(paths)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    strings.Join(paths, ", "),
			Message: err.Error(),
		})
		return result
	}
	if len(files) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			File:    strings.Join(paths, ", "),
			Message: "no scenario files found",
		})
		return result
	}

	names := make(map[string]string)
	for _, file := range files {
		scenarios, err := scenario.ParseFile(file)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    file,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}
		result.Files = append(result.Files, file)

		for _, sc := range scenarios {
			if !scenario.ShouldInclude(sc, v.includeTags, v.excludeTags) {
				continue
			}
			result.Scenarios = append(result.Scenarios, sc)
			for _, msg := range checkScenario(sc) {
				result.Errors = append(result.Errors, newError(sc, msg))
			}
			if sc.Name == "" {
				continue
			}
			if prev, dup := names[sc.Name]; dup {
				result.Errors = append(result.Errors, newError(sc, fmt.Sprintf("duplicate scenario name, first defined at %s", prev)))
				continue
			}
			names[sc.Name] = fmt.Sprintf("%s:%d", sc.SourcePath, sc.Line)
		}
	}

	return result
}

func newError(sc *scenario.Scenario, msg string) *ValidationError {
	return &ValidationError{File: sc.SourcePath, Line: sc.Line, Scenario: sc.Name, Message: msg}
}

// checkScenario returns every problem found in one scenario.
func checkScenario(sc *scenario.Scenario) []string {
	var msgs []string
	if sc.URL == "" {
		msgs = append(msgs, "url is required")
	}
	if sc.Timeout < 0 {
		msgs = append(msgs, fmt.Sprintf("timeout must not be negative, got %d", sc.Timeout))
	}

	msgs = append(msgs, checkTarget("target", sc.Target)...)
	for i, t := range sc.Also {
		msgs = append(msgs, checkTarget(fmt.Sprintf("also[%d]", i), t)...)
	}
	if sc.Expect.Text != nil {
		if msg := checkSelector(sc.Expect.Text.Target); msg != "" {
			msgs = append(msgs, "expect.text: "+msg)
		}
	}

	in := sc.Interaction
	if in.Kind != scenario.BulkClickAll && (in.ReclickIndex != nil || in.ObserveIndex != nil) {
		msgs = append(msgs, fmt.Sprintf("reclickIndex and observeIndex only apply to clickAll, not %s", in.Kind))
	}
	if in.ReclickIndex != nil && *in.ReclickIndex < 0 {
		msgs = append(msgs, "reclickIndex must not be negative")
	}
	if in.ObserveIndex != nil && *in.ObserveIndex < 0 {
		msgs = append(msgs, "observeIndex must not be negative")
	}
	return msgs
}

func checkTarget(field string, t scenario.Target) []string {
	var msgs []string
	switch loc := t.Locator.(type) {
	case nil:
		msgs = append(msgs, field+" is required")
	case scenario.Direct:
		if msg := checkSelector(loc.By); msg != "" {
			msgs = append(msgs, field+": "+msg)
		}
	case scenario.Relative:
		if strings.TrimSpace(loc.Anchor.Text) == "" {
			msgs = append(msgs, field+": relative anchor text is required")
		}
	case scenario.Hierarchical:
		if len(loc.Sections) == 0 {
			msgs = append(msgs, field+": hierarchy needs at least one section")
		}
		for i, sec := range loc.Sections {
			if strings.TrimSpace(sec) == "" {
				msgs = append(msgs, fmt.Sprintf("%s: section %d is empty", field, i))
			}
		}
		if strings.TrimSpace(loc.Leaf) == "" {
			msgs = append(msgs, field+": hierarchy leaf is required")
		}
	}
	return msgs
}

// checkSelector compiles xpath and css selectors. Values still holding
// ${...} expressions are checked after expansion at run time instead.
func checkSelector(by core.By) string {
	if strings.TrimSpace(by.Value) == "" {
		return fmt.Sprintf("empty %s selector", by.Kind)
	}
	if strings.Contains(by.Value, "${") {
		return ""
	}
	switch by.Kind {
	case core.ByXPath:
		if _, err := xpath.Compile(by.Value); err != nil {
			return fmt.Sprintf("invalid xpath %q: %v", by.Value, err)
		}
	case core.ByCSS:
		if _, err := cascadia.Compile(by.Value); err != nil {
			return fmt.Sprintf("invalid css %q: %v", by.Value, err)
		}
	}
	return ""
}
