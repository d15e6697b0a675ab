// Package verifier runs checkbox verification scenarios against a session:
// resolve the target, interact with it, read its state and check it.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/hierarchy"
	"github.com/devicelab-dev/checkbox-runner/pkg/locate"
	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
	"github.com/devicelab-dev/checkbox-runner/pkg/wait"
	"go.uber.org/zap"
)

// Verifier orchestrates resolution, interaction and assertions on one session.
type Verifier struct {
	sess     core.Session
	logger   *zap.Logger
	waitOpts []wait.Option
	navOpts  []hierarchy.Option

	waiter    *wait.Waiter
	resolver  *locate.Resolver
	navigator *hierarchy.Navigator
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithWaitOptions configures the waiter used for every wait.
func WithWaitOptions(opts ...wait.Option) Option {
	return func(v *Verifier) { v.waitOpts = append(v.waitOpts, opts...) }
}

// WithNavigatorOptions configures tree navigation (toggle xpath, leaf filter).
func WithNavigatorOptions(opts ...hierarchy.Option) Option {
	return func(v *Verifier) { v.navOpts = append(v.navOpts, opts...) }
}

// New creates a Verifier over sess.
func New(sess core.Session, opts ...Option) *Verifier {
	v := &Verifier{sess: sess, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	v.build(0)
	return v
}

func (v *Verifier) build(timeout time.Duration) {
	waitOpts := append([]wait.Option{wait.WithLogger(v.logger)}, v.waitOpts...)
	if timeout > 0 {
		waitOpts = append(waitOpts, wait.WithTimeout(timeout))
	}
	v.waiter = wait.New(waitOpts...)
	v.resolver = locate.New(v.sess, locate.WithLogger(v.logger))
	navOpts := append([]hierarchy.Option{hierarchy.WithLogger(v.logger)}, v.navOpts...)
	v.navigator = hierarchy.New(v.sess, v.waiter, v.resolver, navOpts...)
}

// withTimeout returns a copy whose waits use timeout.
func (v *Verifier) withTimeout(timeout time.Duration) *Verifier {
	if timeout <= 0 {
		return v
	}
	c := *v
	c.build(timeout)
	return &c
}

// Navigator exposes the tree navigator, mainly for section state inspection.
func (v *Verifier) Navigator() *hierarchy.Navigator { return v.navigator }

// Resolve resolves loc to exactly one element. Multiple direct matches
// resolve to the first in DOM order.
func (v *Verifier) Resolve(ctx context.Context, loc scenario.TargetLocator) (core.ElementHandle, error) {
	switch l := loc.(type) {
	case scenario.Direct:
		all, err := v.locateAll(ctx, l.By)
		if err != nil {
			return nil, err
		}
		if len(all) > 1 {
			v.logger.Debug("locator matched several elements, using first in DOM order",
				zap.String("locator", l.By.String()), zap.Int("matches", len(all)))
		}
		return all[0], nil
	case scenario.Relative:
		return v.resolver.Resolve(ctx, l.Anchor, l.Relation, l.Filter)
	case scenario.Hierarchical:
		if err := v.navigator.OpenSections(ctx, l.Sections); err != nil {
			return nil, err
		}
		return v.navigator.ResolveLeaf(ctx, l.Leaf)
	case nil:
		return nil, core.ErrInvalidLocator.WithMessage("no target locator")
	default:
		return nil, core.ErrInvalidLocator.WithMessagef("unsupported target locator %T", loc)
	}
}

// ResolveAll resolves every element for a bulk interaction. Only direct
// locators can yield more than one element.
func (v *Verifier) ResolveAll(ctx context.Context, loc scenario.TargetLocator) ([]core.ElementHandle, error) {
	if d, ok := loc.(scenario.Direct); ok {
		return v.locateAll(ctx, d.By)
	}
	h, err := v.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	return []core.ElementHandle{h}, nil
}

func (v *Verifier) locateAll(ctx context.Context, by core.By) ([]core.ElementHandle, error) {
	if by.IsEmpty() {
		return nil, core.ErrInvalidLocator.WithMessage("empty locator")
	}
	all, err := v.sess.Locate(ctx, by)
	if err != nil {
		return nil, core.CommandError("locate "+by.String(), err)
	}
	if len(all) == 0 {
		return nil, core.ErrElementNotFound.
			WithMessagef("no element matches %s", by).
			WithDetails(map[string]interface{}{"locator": by.String()})
	}
	return all, nil
}

// Outcome is what an interaction produced.
type Outcome struct {
	State   core.CheckboxState
	Clicked int
	Skipped int
}

// RunScenario resolves loc, performs the interaction and returns the state
// of the observed element read after the clicks.
func (v *Verifier) RunScenario(ctx context.Context, loc scenario.TargetLocator, in scenario.Interaction) (core.CheckboxState, error) {
	out, err := v.run(ctx, loc, in, nil, nil)
	return out.State, err
}

func (v *Verifier) run(ctx context.Context, loc scenario.TargetLocator, in scenario.Interaction,
	also []scenario.Target, confirm *scenario.TextExpectation) (Outcome, error) {
	var out Outcome

	observed, err := v.interact(ctx, loc, in, &out)
	if err != nil {
		return out, err
	}

	for _, t := range also {
		h, err := v.Resolve(ctx, t.Locator)
		if err != nil {
			return out, err
		}
		if err := v.click(ctx, h); err != nil {
			return out, err
		}
		out.Clicked++
	}

	// A confirmation signal means the page re-renders asynchronously; read
	// state only once it shows.
	if confirm != nil {
		if _, err := v.waiter.Until(ctx, wait.TextToBe(v.sess, confirm.Target, confirm.Equals)); err != nil {
			return out, err
		}
	}

	state, err := core.ReadState(ctx, observed)
	if err != nil {
		return out, core.CommandError("read state", err)
	}
	out.State = state
	return out, nil
}

func (v *Verifier) interact(ctx context.Context, loc scenario.TargetLocator, in scenario.Interaction, out *Outcome) (core.ElementHandle, error) {
	switch in.Kind {
	case scenario.SingleClick, scenario.ClickThenReClick:
		h, err := v.Resolve(ctx, loc)
		if err != nil {
			return nil, err
		}
		clicks := 1
		if in.Kind == scenario.ClickThenReClick {
			clicks = 2
		}
		for i := 0; i < clicks; i++ {
			if err := v.click(ctx, h); err != nil {
				return nil, err
			}
			out.Clicked++
		}
		return h, nil

	case scenario.BulkClickAll:
		all, err := v.ResolveAll(ctx, loc)
		if err != nil {
			return nil, err
		}
		clicked, skipped, err := BulkClick(ctx, all)
		out.Clicked += clicked
		out.Skipped += skipped
		if err != nil {
			return nil, err
		}
		v.logger.Debug("bulk click", zap.Int("clicked", clicked), zap.Int("skipped", skipped))

		if in.ReclickIndex != nil {
			h, err := pick(all, *in.ReclickIndex, loc)
			if err != nil {
				return nil, err
			}
			if err := v.click(ctx, h); err != nil {
				return nil, err
			}
			out.Clicked++
		}
		return pick(all, in.Observed(), loc)

	default:
		return nil, core.ErrInvalidConfig.WithMessagef("unsupported interaction %s", in.Kind)
	}
}

// BulkClick clicks each element that is displayed and enabled at the moment
// it is reached. Others are skipped, not failed.
func BulkClick(ctx context.Context, elems []core.ElementHandle) (clicked, skipped int, err error) {
	for _, h := range elems {
		displayed, err := h.IsDisplayed(ctx)
		if err != nil {
			return clicked, skipped, core.CommandError("isDisplayed", err)
		}
		enabled := false
		if displayed {
			if enabled, err = h.IsEnabled(ctx); err != nil {
				return clicked, skipped, core.CommandError("isEnabled", err)
			}
		}
		if !displayed || !enabled {
			skipped++
			continue
		}
		if err := h.Click(ctx); err != nil {
			return clicked, skipped, core.CommandError("click", err)
		}
		clicked++
	}
	return clicked, skipped, nil
}

// click waits until h is clickable, then clicks it once.
func (v *Verifier) click(ctx context.Context, h core.ElementHandle) error {
	if _, err := v.waiter.Until(ctx, wait.HandleClickable(h)); err != nil {
		return err
	}
	return core.CommandError("click", h.Click(ctx))
}

func pick(all []core.ElementHandle, i int, loc scenario.TargetLocator) (core.ElementHandle, error) {
	if i < 0 || i >= len(all) {
		return nil, core.ErrElementNotFound.
			WithMessagef("index %d out of range: %s matched %d elements", i, loc, len(all))
	}
	return all[i], nil
}

// Check compares state against expect. Selection is only asserted on a
// readable (displayed and enabled) element.
func Check(expect scenario.Expectation, state core.CheckboxState) error {
	var mismatches []string
	cmp := func(name string, want *bool, got bool) {
		if want != nil && *want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %t, got %t", name, *want, got))
		}
	}
	cmp("displayed", expect.Displayed, state.Displayed)
	cmp("enabled", expect.Enabled, state.Enabled)
	if expect.Selected != nil {
		if state.Readable() {
			cmp("selected", expect.Selected, state.Selected)
		} else {
			mismatches = append(mismatches, fmt.Sprintf("selected: not readable (%s)", state))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return core.ErrAssertionFailed.
		WithMessage(strings.Join(mismatches, "; ")).
		WithDetails(map[string]interface{}{"observed": state.String()})
}

// Verify runs a whole scenario: navigate, interact, confirm and assert.
func (v *Verifier) Verify(ctx context.Context, sc *scenario.Scenario) core.ScenarioResult {
	result := core.ScenarioResult{
		Name:       sc.Describe(),
		SourceFile: sc.SourcePath,
		Tags:       sc.Tags,
		Outcome:    core.OutcomePending,
		StartTime:  time.Now(),
	}
	info := v.sess.Info()
	result.Session = &info

	out, err := v.withTimeout(sc.WaitTimeout()).verify(ctx, sc)
	result.Duration = time.Since(result.StartTime)
	result.Clicked = out.Clicked
	result.Skipped = out.Skipped
	if err == nil || core.Classify(err) == core.OutcomeAssertionFailed {
		st := out.State
		result.State = &st
	}
	result.Fail(err)

	v.logger.Debug("scenario verified",
		zap.String("scenario", result.Name),
		zap.String("outcome", result.Outcome.String()),
		zap.Duration("elapsed", result.Duration))
	return result
}

func (v *Verifier) verify(ctx context.Context, sc *scenario.Scenario) (Outcome, error) {
	if sc.URL != "" {
		if err := v.sess.Navigate(ctx, sc.URL); err != nil {
			if _, ok := core.AsExecutionError(err); ok {
				return Outcome{}, err
			}
			return Outcome{}, core.ErrNavigationFailed.WithMessagef("navigate to %s", sc.URL).WithCause(err)
		}
	}

	out, err := v.run(ctx, sc.Target.Locator, sc.Interaction, sc.Also, sc.Expect.Text)
	if err != nil {
		return out, err
	}
	return out, Check(sc.Expect, out.State)
}
