package scenario

import (
	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Expand returns a copy of s with fn applied to every user-facing string:
// name, url, selector values, anchor text, section and leaf labels and
// expected text.
func (s *Scenario) Expand(fn func(string) (string, error)) (*Scenario, error) {
	out := *s
	var firstErr error
	x := func(v string) string {
		if firstErr != nil || v == "" {
			return v
		}
		r, err := fn(v)
		if err != nil {
			firstErr = err
			return v
		}
		return r
	}

	out.Name = x(s.Name)
	out.URL = x(s.URL)
	out.Target = expandTarget(s.Target, x)
	out.Also = make([]Target, len(s.Also))
	for i, t := range s.Also {
		out.Also[i] = expandTarget(t, x)
	}
	if s.Expect.Text != nil {
		out.Expect.Text = &TextExpectation{
			Target: core.By{Kind: s.Expect.Text.Target.Kind, Value: x(s.Expect.Text.Target.Value)},
			Equals: x(s.Expect.Text.Equals),
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return &out, nil
}

func expandTarget(t Target, x func(string) string) Target {
	switch loc := t.Locator.(type) {
	case Direct:
		loc.By.Value = x(loc.By.Value)
		return Target{Locator: loc}
	case Relative:
		loc.Anchor.Text = x(loc.Anchor.Text)
		return Target{Locator: loc}
	case Hierarchical:
		sections := make([]string, len(loc.Sections))
		for i, sec := range loc.Sections {
			sections[i] = x(sec)
		}
		return Target{Locator: Hierarchical{Sections: sections, Leaf: x(loc.Leaf)}}
	default:
		return t
	}
}
