// Package scenario handles parsing and representation of checkbox
// verification scenarios.
package scenario

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Scenario is one verification: load a page, resolve a checkbox, interact
// with it and check the resulting state.
type Scenario struct {
	SourcePath string `yaml:"-"`
	Line       int    `yaml:"-"`

	Name        string            `yaml:"name"`
	URL         string            `yaml:"url"`
	Tags        []string          `yaml:"tags"`
	Env         map[string]string `yaml:"env"`
	Timeout     int               `yaml:"timeout"` // Wait budget in ms, 0 = runner default
	Target      Target            `yaml:"target"`
	Interaction Interaction       `yaml:"-"`
	Also        []Target          `yaml:"also"`
	Expect      Expectation       `yaml:"expect"`
}

// WaitTimeout returns the scenario's wait budget, or 0 when unset.
func (s *Scenario) WaitTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// Describe returns the name, or the source location when unnamed.
func (s *Scenario) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d", s.SourcePath, s.Line)
	}
	return s.SourcePath
}

// InteractionKind selects how the resolved checkbox is clicked.
type InteractionKind int

const (
	SingleClick      InteractionKind = iota // click once
	ClickThenReClick                        // click, then click again to untoggle
	BulkClickAll                            // click every displayed and enabled match
)

func (k InteractionKind) String() string {
	switch k {
	case SingleClick:
		return "click"
	case ClickThenReClick:
		return "toggle"
	case BulkClickAll:
		return "clickAll"
	default:
		return "unknown"
	}
}

// ParseInteractionKind maps the YAML name to a kind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch s {
	case "", "click", "singleClick":
		return SingleClick, nil
	case "toggle", "clickThenReClick":
		return ClickThenReClick, nil
	case "clickAll", "bulkClickAll":
		return BulkClickAll, nil
	}
	return 0, fmt.Errorf("unknown interaction %q (want click, toggle or clickAll)", s)
}

// Interaction describes the clicks a scenario performs.
type Interaction struct {
	Kind InteractionKind

	// ReclickIndex, for BulkClickAll, clicks that match a second time after
	// the bulk pass. Nil means no second click.
	ReclickIndex *int

	// ObserveIndex, for BulkClickAll, is the match whose state is read.
	// Defaults to ReclickIndex when that is set, otherwise 0.
	ObserveIndex *int
}

// Observed returns the index of the element whose state is read after a
// bulk interaction.
func (i Interaction) Observed() int {
	switch {
	case i.ObserveIndex != nil:
		return *i.ObserveIndex
	case i.ReclickIndex != nil:
		return *i.ReclickIndex
	default:
		return 0
	}
}

func (i Interaction) String() string {
	if i.Kind == BulkClickAll && i.ReclickIndex != nil {
		return fmt.Sprintf("%s (reclick %d)", i.Kind, *i.ReclickIndex)
	}
	return i.Kind.String()
}

// Expectation is the state a scenario must observe. Nil fields are not
// checked.
type Expectation struct {
	Displayed *bool            `yaml:"displayed"`
	Enabled   *bool            `yaml:"enabled"`
	Selected  *bool            `yaml:"selected"`
	Text      *TextExpectation `yaml:"text"`
}

// IsEmpty returns true if nothing is asserted.
func (e Expectation) IsEmpty() bool {
	return e.Displayed == nil && e.Enabled == nil && e.Selected == nil && e.Text == nil
}

// TextExpectation is a derived confirmation: an element whose text must
// equal Equals once the click has settled.
type TextExpectation struct {
	Target core.By
	Equals string
}
