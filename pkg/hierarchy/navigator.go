// Package hierarchy opens nested tree sections in order and resolves the
// checkbox next to a leaf label.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/locate"
	"github.com/devicelab-dev/checkbox-runner/pkg/wait"
	"go.uber.org/zap"
)

// DefaultToggleXPath finds the expand toggle of a tree node from its label.
// %s receives the label as an xpath string literal.
const DefaultToggleXPath = "//span[contains(text(), %s)]/parent::a/preceding-sibling::span"

// SectionState tracks one section through OpenSections.
type SectionState int

const (
	Closed SectionState = iota
	Opening
	Open
)

func (s SectionState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Section is a requested section and where it got to.
type Section struct {
	Label string
	State SectionState
}

// Navigator drives one tree on one session. It is not safe for concurrent use.
type Navigator struct {
	sess     core.Session
	waiter   *wait.Waiter
	resolver *locate.Resolver
	logger   *zap.Logger

	toggleXPath string
	labelTag    string
	leafFilter  locate.Filter
	relation    locate.Relation

	sections []Section
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithToggleXPath overrides the toggle locator template.
func WithToggleXPath(format string) Option {
	return func(n *Navigator) {
		if format != "" {
			n.toggleXPath = format
		}
	}
}

// WithLabelTag sets the element name that carries leaf labels.
func WithLabelTag(tag string) Option {
	return func(n *Navigator) { n.labelTag = tag }
}

// WithLeafFilter sets which elements next to a label count as its checkbox.
func WithLeafFilter(f locate.Filter) Option {
	return func(n *Navigator) {
		if f != (locate.Filter{}) {
			n.leafFilter = f
		}
	}
}

// WithRelation sets where the checkbox sits relative to its label.
func WithRelation(r locate.Relation) Option {
	return func(n *Navigator) { n.relation = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Navigator.
func New(sess core.Session, waiter *wait.Waiter, resolver *locate.Resolver, opts ...Option) *Navigator {
	n := &Navigator{
		sess:        sess,
		waiter:      waiter,
		resolver:    resolver,
		logger:      zap.NewNop(),
		toggleXPath: DefaultToggleXPath,
		labelTag:    "span",
		leafFilter:  locate.Filter{Tag: "div"},
		relation:    locate.LeftOf,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ToggleLocator returns the locator of the expand toggle for label.
func (n *Navigator) ToggleLocator(label string) core.By {
	return core.XPath(fmt.Sprintf(n.toggleXPath, core.XPathLiteral(label)))
}

// OpenSections expands each labelled section strictly in order. A section
// that never becomes clickable fails the call with ErrSectionOpenFailed;
// sections opened before it stay open.
func (n *Navigator) OpenSections(ctx context.Context, labels []string) error {
	n.sections = make([]Section, len(labels))
	for i, l := range labels {
		n.sections[i] = Section{Label: l, State: Closed}
	}

	for i, label := range labels {
		n.setState(i, Opening)
		n.logger.Debug("opening section", zap.String("section", label), zap.Int("index", i))

		if err := n.openOne(ctx, label); err != nil {
			n.setState(i, Closed)
			return core.ErrSectionOpenFailed.
				WithMessagef("failed to open section %q (%d of %d)", label, i+1, len(labels)).
				WithDetails(map[string]interface{}{
					"section": label,
					"index":   i,
					"opened":  append([]string(nil), labels[:i]...),
				}).
				WithCause(err)
		}
		n.setState(i, Open)
	}
	return nil
}

func (n *Navigator) openOne(ctx context.Context, label string) error {
	toggle, err := n.waiter.Until(ctx, wait.Clickable(n.sess, n.ToggleLocator(label)))
	if err != nil {
		return err
	}
	return core.CommandError("click toggle", toggle.Click(ctx))
}

// ResolveLeaf waits for the first label containing text to become visible
// and returns the checkbox next to it. Labels are not unique across a tree;
// the first match in DOM order is used.
func (n *Navigator) ResolveLeaf(ctx context.Context, label string) (core.ElementHandle, error) {
	anchor := locate.Anchor{Text: label, Tag: n.labelTag}
	by, err := anchor.By()
	if err != nil {
		return nil, err
	}
	labelEl, err := n.waiter.Until(ctx, wait.Clickable(n.sess, by))
	if err != nil {
		return nil, err
	}
	return n.resolver.ResolveFrom(ctx, labelEl, n.relation, n.leafFilter)
}

// Sections returns the state of the sections requested by the last
// OpenSections call.
func (n *Navigator) Sections() []Section {
	return append([]Section(nil), n.sections...)
}

func (n *Navigator) setState(i int, s SectionState) {
	n.sections[i].State = s
}
