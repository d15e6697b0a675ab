// Package wait polls the live DOM until a condition holds or the wait budget
// runs out. It is the only place a scenario blocks on the page.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// Probe is one evaluation of a condition.
type Probe struct {
	Element   core.ElementHandle // element the condition looked at, if any
	Appeared  bool               // a matching element existed
	Satisfied bool               // condition held
	Observed  string             // what was seen, for timeout diagnostics
}

// Condition is a named predicate over the DOM.
type Condition struct {
	Name  string
	Check func(ctx context.Context) (Probe, error)
}

// Waiter runs conditions with a fixed budget and polling interval.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithTimeout sets the wait budget. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithInterval sets the polling interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Waiter) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Waiter with a 30s budget polling every 500ms unless overridden.
func New(opts ...Option) *Waiter {
	w := &Waiter{timeout: DefaultTimeout, interval: DefaultInterval, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout returns the configured budget.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Until evaluates cond until it is satisfied and returns the element it
// reported. It never gives up before the budget has fully elapsed. Transient
// command failures (stale elements and the like) count as "not yet"; any
// other error from the condition ends the wait immediately.
func (w *Waiter) Until(ctx context.Context, cond Condition) (core.ElementHandle, error) {
	start := time.Now()
	deadline := start.Add(w.timeout)
	attempts := 0
	everAppeared := false
	var last Probe

	for {
		attempts++
		p, err := cond.Check(ctx)
		switch {
		case err == nil:
			last = p
			everAppeared = everAppeared || p.Appeared
			if p.Satisfied {
				w.logger.Debug("wait satisfied",
					zap.String("condition", cond.Name),
					zap.Duration("elapsed", time.Since(start)),
					zap.Int("attempts", attempts))
				return p.Element, nil
			}
		case errors.Is(err, core.ErrCommandFailed):
			last = Probe{Appeared: last.Appeared, Observed: err.Error()}
		default:
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, w.timeoutError(cond, last, everAppeared, time.Since(start), attempts)
		}

		pause := w.interval
		if remaining < pause {
			pause = remaining
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *Waiter) timeoutError(cond Condition, last Probe, appeared bool, elapsed time.Duration, attempts int) error {
	state := "never_appeared"
	reason := "never appeared"
	if appeared {
		state = "not_ready"
		reason = "appeared but never reached target state"
		if last.Observed != "" {
			reason += " (last: " + last.Observed + ")"
		}
	}

	w.logger.Debug("wait timed out",
		zap.String("condition", cond.Name),
		zap.String("state", state),
		zap.Duration("elapsed", elapsed),
		zap.Int("attempts", attempts))

	return core.ErrTimeout.
		WithMessage(fmt.Sprintf("timed out after %s waiting for %s: %s", w.timeout, cond.Name, reason)).
		WithDetails(map[string]interface{}{
			"condition": cond.Name,
			"appeared":  appeared,
			"state":     state,
			"observed":  last.Observed,
			"attempts":  attempts,
		})
}
