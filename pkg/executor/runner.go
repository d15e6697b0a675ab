// Package executor runs scenarios against browser sessions and records the
// outcomes in the report.
package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
	"github.com/devicelab-dev/checkbox-runner/pkg/report"
	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
	"github.com/devicelab-dev/checkbox-runner/pkg/verifier"
	"github.com/devicelab-dev/checkbox-runner/pkg/wait"
)

// SessionFactory opens a fresh session for one scenario. The runner closes
// every session it opens.
type SessionFactory interface {
	Open(ctx context.Context, sc *scenario.Scenario) (core.Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context, sc *scenario.Scenario) (core.Session, error)

// Open calls f.
func (f SessionFactoryFunc) Open(ctx context.Context, sc *scenario.Scenario) (core.Session, error) {
	return f(ctx, sc)
}

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir   string // Report output directory
	Parallelism int    // Max concurrent sessions (0 or 1 = sequential)
	StopOnFail  bool   // Skip scenarios not yet started after the first failure

	Timeout      time.Duration     // Default wait budget, 0 = waiter default
	PollInterval time.Duration     // Waiter poll interval, 0 = waiter default
	Env          map[string]string // Variables visible to ${...} expansion

	// Runner metadata
	RunnerVersion string
	DriverName    string

	Logger *zap.Logger

	// Live progress callbacks, called from worker goroutines
	OnScenarioStart func(idx, total int, name string)
	OnScenarioEnd   func(idx int, result core.ScenarioResult)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	Status              report.Status
	Total               int
	Passed              int
	AssertionFailed     int
	InfrastructureError int
	Skipped             int
	Duration            time.Duration // Wall clock
	Results             []core.ScenarioResult
	ReportPath          string
	Index               report.Index
}

// Failed reports whether any scenario failed or errored.
func (r *RunResult) Failed() bool {
	return r.AssertionFailed+r.InfrastructureError > 0
}

// Runner orchestrates scenario execution.
type Runner struct {
	config  RunnerConfig
	factory SessionFactory
	logger  *zap.Logger
}

// New creates a new Runner.
func New(factory SessionFactory, cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{config: cfg, factory: factory, logger: logger}
}

// Run executes all scenarios and writes the report.
func (r *Runner) Run(ctx context.Context, scenarios []*scenario.Scenario) (*RunResult, error) {
	if r.config.OutputDir == "" {
		return nil, core.ErrMissingRequired.WithMessage("report output directory is required")
	}

	index := report.BuildSkeleton(scenarios, report.BuilderConfig{
		RunnerVersion: r.config.RunnerVersion,
		DriverName:    r.config.DriverName,
		Parallel:      r.config.Parallelism,
	})
	writer, err := report.NewIndexWriter(r.config.OutputDir, index)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	writer.Start()
	results := r.executeScenarios(ctx, scenarios, index, writer)
	writer.End()

	res := r.buildRunResult(results, time.Since(start))
	res.ReportPath = writer.Path()
	res.Index = writer.Snapshot()
	res.Status = res.Index.Status
	if err := writer.Err(); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	return res, nil
}

// executeScenarios runs scenarios with at most Parallelism sessions open.
func (r *Runner) executeScenarios(ctx context.Context, scenarios []*scenario.Scenario, index *report.Index, writer *report.IndexWriter) []core.ScenarioResult {
	results := make([]core.ScenarioResult, len(scenarios))
	limit := r.config.Parallelism
	if limit < 1 {
		limit = 1
	}

	ids := make([]string, len(index.Scenarios))
	for i, e := range index.Scenarios {
		ids[i] = e.ID
	}

	var stop atomic.Bool
	var g errgroup.Group
	g.SetLimit(limit)

	for i := range scenarios {
		idx := i
		id := ids[idx]
		g.Go(func() error {
			sc := scenarios[idx]
			if reason := r.skipReason(ctx, &stop); reason != "" {
				results[idx] = skipped(sc, reason)
				writer.UpdateScenario(id, report.FromResult(&results[idx]))
				return nil
			}

			results[idx] = r.executeScenario(ctx, idx, len(scenarios), sc, id, writer)
			if r.config.StopOnFail && !results[idx].Outcome.IsSuccess() {
				stop.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) skipReason(ctx context.Context, stop *atomic.Bool) string {
	if ctx.Err() != nil {
		return "run cancelled"
	}
	if stop.Load() {
		return "run stopped after failure"
	}
	return ""
}

func skipped(sc *scenario.Scenario, reason string) core.ScenarioResult {
	return core.ScenarioResult{
		Name:       sc.Describe(),
		SourceFile: sc.SourcePath,
		Tags:       sc.Tags,
		Outcome:    core.OutcomeSkipped,
		Error:      reason,
		StartTime:  time.Now(),
	}
}

// executeScenario runs one scenario on its own session.
func (r *Runner) executeScenario(ctx context.Context, idx, total int, sc *scenario.Scenario, id string, writer *report.IndexWriter) core.ScenarioResult {
	log := r.logger.With(zap.String("scenario", sc.Describe()))
	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(idx, total, sc.Describe())
	}
	now := time.Now()
	writer.UpdateScenario(id, &report.ScenarioUpdate{Status: report.StatusRunning, StartTime: &now})

	result := r.verify(ctx, sc, log)

	writer.UpdateScenario(id, report.FromResult(&result))
	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(idx, result)
	}
	log.Info("scenario finished",
		zap.String("outcome", result.Outcome.String()),
		zap.Duration("elapsed", result.Duration),
		zap.String("error", result.Error))
	return result
}

func (r *Runner) verify(ctx context.Context, sc *scenario.Scenario, log *zap.Logger) core.ScenarioResult {
	start := time.Now()
	fail := func(err error) core.ScenarioResult {
		res := core.ScenarioResult{
			Name:       sc.Describe(),
			SourceFile: sc.SourcePath,
			Tags:       sc.Tags,
			StartTime:  start,
			Duration:   time.Since(start),
		}
		res.Fail(err)
		return res
	}

	se := NewScriptEngine(log)
	expanded, err := se.Expand(sc, r.config.Env)
	se.Close()
	if err != nil {
		return fail(core.ErrInvalidConfig.WithMessage("variable expansion failed").WithCause(err))
	}

	sess, err := r.factory.Open(ctx, expanded)
	if err != nil {
		if _, ok := core.AsExecutionError(err); !ok {
			err = core.ErrSessionFailed.WithCause(err)
		}
		return fail(err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("session close failed", zap.Error(err))
		}
	}()

	v := verifier.New(sess,
		verifier.WithLogger(log),
		verifier.WithWaitOptions(
			wait.WithTimeout(r.config.Timeout),
			wait.WithInterval(r.config.PollInterval),
			wait.WithLogger(log),
		))
	result := v.Verify(ctx, expanded)
	result.StartTime = start
	result.Duration = time.Since(start)
	return result
}

// buildRunResult aggregates scenario results into a run result.
func (r *Runner) buildRunResult(results []core.ScenarioResult, wallClock time.Duration) *RunResult {
	res := &RunResult{
		Total:    len(results),
		Results:  results,
		Duration: wallClock,
	}
	for _, sr := range results {
		switch sr.Outcome {
		case core.OutcomePassed:
			res.Passed++
		case core.OutcomeAssertionFailed:
			res.AssertionFailed++
		case core.OutcomeInfrastructureError:
			res.InfrastructureError++
		case core.OutcomeSkipped:
			res.Skipped++
		}
	}
	return res
}
