package scenario

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/locate"
	"gopkg.in/yaml.v3"
)

// TargetLocator is one of Direct, Relative or Hierarchical.
type TargetLocator interface {
	isTargetLocator()
	String() string
}

// Direct resolves through a plain selector.
type Direct struct {
	By core.By
}

// Relative resolves the nearest Filter match positioned Relation of Anchor.
type Relative struct {
	Anchor   locate.Anchor
	Relation locate.Relation
	Filter   locate.Filter
}

// Hierarchical opens Sections in order, then resolves the checkbox beside
// the Leaf label.
type Hierarchical struct {
	Sections []string
	Leaf     string
}

func (Direct) isTargetLocator() {}
func (Relative) isTargetLocator() {}
func (Hierarchical) isTargetLocator() {}

func (d Direct) String() string { return d.By.String() }

func (r Relative) String() string {
	return fmt.Sprintf("%s %s %s", r.Filter.Describe(), r.Relation, r.Anchor)
}

func (h Hierarchical) String() string {
	return fmt.Sprintf("%q in %s", h.Leaf, strings.Join(h.Sections, " > "))
}

// Target wraps a TargetLocator for YAML decoding.
type Target struct {
	Locator TargetLocator
}

func (t Target) String() string {
	if t.Locator == nil {
		return "<none>"
	}
	return t.Locator.String()
}

// selectorRaw is the selector shorthand shared by targets and text expectations.
type selectorRaw struct {
	ID        string `yaml:"id"`
	ClassName string `yaml:"className"`
	XPath     string `yaml:"xpath"`
	CSS       string `yaml:"css"`
	Text      string `yaml:"text"`
	Tag       string `yaml:"tag"`
}

func (r selectorRaw) by() (core.By, error) {
	var set []core.By
	add := func(kind core.SelectorKind, v string) {
		if v != "" {
			set = append(set, core.By{Kind: kind, Value: v})
		}
	}
	add(core.ByID, r.ID)
	add(core.ByClassName, r.ClassName)
	add(core.ByXPath, r.XPath)
	add(core.ByCSS, r.CSS)
	add(core.ByTextContains, r.Text)
	add(core.ByTagName, r.Tag)

	switch len(set) {
	case 0:
		return core.By{}, fmt.Errorf("no selector given (want one of id, className, xpath, css, text, tag)")
	case 1:
		return set[0], nil
	default:
		return core.By{}, fmt.Errorf("only one selector allowed, got %s and %s", set[0].Kind, set[1].Kind)
	}
}

type relativeRaw struct {
	Anchor    string `yaml:"anchor"`
	AnchorTag string `yaml:"anchorTag"`
	Relation  string `yaml:"relation"`
	Tag       string `yaml:"tag"`
	ClassName string `yaml:"className"`
}

type hierarchyRaw struct {
	Sections []string `yaml:"sections"`
	Leaf     string   `yaml:"leaf"`
}

type targetRaw struct {
	selectorRaw `yaml:",inline"`
	Relative    *relativeRaw  `yaml:"relative"`
	Hierarchy   *hierarchyRaw `yaml:"hierarchy"`
}

// UnmarshalYAML allows Target to be unmarshaled from string or struct.
// A bare string is a text-contains selector.
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Locator = Direct{By: core.TextContains(node.Value)}
		return nil
	}

	var raw targetRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	variants := 0
	if raw.Relative != nil {
		variants++
	}
	if raw.Hierarchy != nil {
		variants++
	}
	if raw.selectorRaw != (selectorRaw{}) {
		variants++
	}
	if variants > 1 {
		return fmt.Errorf("line %d: target must be exactly one of a selector, relative or hierarchy", node.Line)
	}

	switch {
	case raw.Relative != nil:
		rel, err := locate.ParseRelation(raw.Relative.Relation)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		t.Locator = Relative{
			Anchor:   locate.Anchor{Text: raw.Relative.Anchor, Tag: raw.Relative.AnchorTag},
			Relation: rel,
			Filter:   locate.Filter{Tag: raw.Relative.Tag, ClassName: raw.Relative.ClassName},
		}
	case raw.Hierarchy != nil:
		t.Locator = Hierarchical{Sections: raw.Hierarchy.Sections, Leaf: raw.Hierarchy.Leaf}
	default:
		by, err := raw.selectorRaw.by()
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		t.Locator = Direct{By: by}
	}
	return nil
}

type textExpectationRaw struct {
	selectorRaw `yaml:",inline"`
	Equals      *string `yaml:"equals"`
}

// UnmarshalYAML decodes {<selector>: value, equals: text}.
func (e *TextExpectation) UnmarshalYAML(node *yaml.Node) error {
	var raw textExpectationRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Equals == nil {
		return fmt.Errorf("line %d: text expectation needs equals", node.Line)
	}
	by, err := raw.selectorRaw.by()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	e.Target = by
	e.Equals = *raw.Equals
	return nil
}
