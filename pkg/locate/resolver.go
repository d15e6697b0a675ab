// Package locate resolves elements by their position relative to a
// text-bearing anchor element.
package locate

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"go.uber.org/zap"
)

// Anchor locates the reference element by a case-sensitive substring of its
// own text. Tag narrows the match to one element name (e.g. "span").
type Anchor struct {
	Text string `yaml:"anchor" json:"anchor"`
	Tag  string `yaml:"anchorTag,omitempty" json:"anchorTag,omitempty"`
}

// By returns the locator for the anchor.
func (a Anchor) By() (core.By, error) {
	if a.Text == "" {
		return core.By{}, core.ErrInvalidLocator.WithMessage("anchor text is empty")
	}
	if a.Tag == "" {
		return core.TextContains(a.Text), nil
	}
	return core.XPath(fmt.Sprintf("//%s[contains(text(), %s)]", a.Tag, core.XPathLiteral(a.Text))), nil
}

func (a Anchor) String() string {
	if a.Tag == "" {
		return fmt.Sprintf("text~%q", a.Text)
	}
	return fmt.Sprintf("%s text~%q", a.Tag, a.Text)
}

// Filter restricts which elements are considered as candidates.
type Filter struct {
	Tag       string `yaml:"tag,omitempty" json:"tag,omitempty"`
	ClassName string `yaml:"className,omitempty" json:"className,omitempty"`
}

// By returns the candidate locator.
func (f Filter) By() (core.By, error) {
	tag := strings.TrimSpace(f.Tag)
	class := strings.TrimSpace(f.ClassName)
	switch {
	case tag != "" && class != "":
		css, err := core.ClassName(class).AsCSS()
		if err != nil {
			return core.By{}, core.ErrInvalidLocator.WithCause(err)
		}
		return core.CSS(tag + css), nil
	case tag != "":
		return core.TagName(tag), nil
	case class != "":
		return core.ClassName(class), nil
	default:
		return core.By{}, core.ErrInvalidLocator.WithMessage("candidate filter needs a tag or className")
	}
}

// Resolver answers relative-locator queries against one session.
type Resolver struct {
	sess   core.Session
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver over sess.
func New(sess core.Session, opts ...Option) *Resolver {
	r := &Resolver{sess: sess, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Anchor returns the first element in DOM order matching a.
func (r *Resolver) Anchor(ctx context.Context, a Anchor) (core.ElementHandle, error) {
	by, err := a.By()
	if err != nil {
		return nil, err
	}
	matches, err := r.sess.Locate(ctx, by)
	if err != nil {
		return nil, core.CommandError("locate anchor "+by.String(), err)
	}
	if len(matches) == 0 {
		return nil, core.ErrElementNotFound.
			WithMessagef("anchor %s not found", a).
			WithDetails(map[string]interface{}{"anchor": a.Text})
	}
	if len(matches) > 1 {
		r.logger.Debug("anchor matched several elements, using first in DOM order",
			zap.Stringer("anchor", a), zap.Int("matches", len(matches)))
	}
	return matches[0], nil
}

// Resolve returns the candidate matching filter that is nearest to the anchor
// while satisfying rel.
func (r *Resolver) Resolve(ctx context.Context, a Anchor, rel Relation, filter Filter) (core.ElementHandle, error) {
	anchor, err := r.Anchor(ctx, a)
	if err != nil {
		return nil, err
	}
	return r.ResolveFrom(ctx, anchor, rel, filter)
}

// ResolveFrom is Resolve with an already located anchor element.
func (r *Resolver) ResolveFrom(ctx context.Context, anchor core.ElementHandle, rel Relation, filter Filter) (core.ElementHandle, error) {
	by, err := filter.By()
	if err != nil {
		return nil, err
	}

	anchorBounds, err := anchor.Rect(ctx)
	if err != nil {
		return nil, core.CommandError("anchor rect", err)
	}
	unsatisfiable := core.ErrRelationUnsatisfiable.WithDetails(map[string]interface{}{
		"relation": rel.String(),
		"filter":   by.String(),
		"anchor":   anchorBounds.String(),
	})
	if anchorBounds.IsEmpty() {
		return nil, unsatisfiable.WithMessage("anchor is not rendered")
	}

	handles, err := r.sess.Locate(ctx, by)
	if err != nil {
		return nil, core.CommandError("locate "+by.String(), err)
	}
	candidates := make([]Candidate, 0, len(handles))
	for i, h := range handles {
		if h.ID() == anchor.ID() {
			continue
		}
		b, err := h.Rect(ctx)
		if err != nil {
			return nil, core.CommandError("candidate rect", err)
		}
		candidates = append(candidates, Candidate{Handle: h, Bounds: b, Index: i})
	}

	qualifying := rel.Filter(candidates, anchorBounds)
	r.logger.Debug("relative resolution",
		zap.String("relation", rel.String()),
		zap.String("locator", by.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("qualifying", len(qualifying)))

	if len(qualifying) == 0 {
		return nil, unsatisfiable.WithMessagef("no %s element %s anchor", by, rel)
	}
	return qualifying[0].Handle, nil
}

// Describe returns the candidate locator as text, or "any element" when the
// filter is empty.
func (f Filter) Describe() string {
	by, err := f.By()
	if err != nil {
		return "any element"
	}
	return by.String()
}
