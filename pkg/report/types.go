// Package report writes the run report.
//
// report.json is the single index file: run metadata, a summary and one entry
// per scenario. It is rewritten atomically whenever a scenario changes state,
// so it can be polled while the run is in progress.
package report

import (
	"time"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status of a scenario or the run.
type Status string

// Status values.
const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusPassed              Status = "passed"
	StatusAssertionFailed     Status = "assertion_failed"
	StatusInfrastructureError Status = "infrastructure_error"
	StatusSkipped             Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusAssertionFailed, StatusInfrastructureError, StatusSkipped:
		return true
	}
	return false
}

// IsFailure reports whether s counts against the run.
func (s Status) IsFailure() bool {
	return s == StatusAssertionFailed || s == StatusInfrastructureError
}

// StatusFromOutcome maps a scenario outcome onto a report status.
func StatusFromOutcome(o core.Outcome) Status {
	switch o {
	case core.OutcomePassed:
		return StatusPassed
	case core.OutcomeAssertionFailed:
		return StatusAssertionFailed
	case core.OutcomeInfrastructureError:
		return StatusInfrastructureError
	case core.OutcomeSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// Index is the report.json document.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Runner      RunnerInfo      `json:"runner"`
	Summary     Summary         `json:"summary"`
	Scenarios   []ScenarioEntry `json:"scenarios"`
}

// RunnerInfo contains checkbox-runner information.
type RunnerInfo struct {
	Version  string `json:"version"`
	Driver   string `json:"driver"` // webdriver, cdp, playwright, mock
	Parallel int    `json:"parallel,omitempty"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total               int `json:"total"`
	Passed              int `json:"passed"`
	AssertionFailed     int `json:"assertionFailed"`
	InfrastructureError int `json:"infrastructureError"`
	Skipped             int `json:"skipped"`
	Running             int `json:"running"`
	Pending             int `json:"pending"`
}

// Failed returns the number of scenarios counting against the run.
func (s Summary) Failed() int {
	return s.AssertionFailed + s.InfrastructureError
}

// ScenarioEntry is the report entry for one scenario.
type ScenarioEntry struct {
	Index       int                 `json:"index"` // Original position
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	SourceFile  string              `json:"sourceFile"`
	Line        int                 `json:"line,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Target      string              `json:"target"` // Locator description
	Interaction string              `json:"interaction"`
	Status      Status              `json:"status"`
	UpdateSeq   uint64              `json:"updateSeq"`
	StartTime   *time.Time          `json:"startTime,omitempty"`
	EndTime     *time.Time          `json:"endTime,omitempty"`
	Duration    *int64              `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time          `json:"lastUpdated,omitempty"`
	Session     *core.SessionInfo   `json:"session,omitempty"`
	State       *core.CheckboxState `json:"state,omitempty"`
	Clicked     int                 `json:"clicked,omitempty"`
	Skipped     int                 `json:"skipped,omitempty"` // Bulk clicks skipped as not interactable
	Error       *Error              `json:"error,omitempty"`
}

// Error contains error details.
type Error struct {
	Kind     string                 `json:"kind"`     // element_not_found, timeout, assertion_failed, ...
	Category string                 `json:"category"` // assertion, element, timeout, navigation, connection, config
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// ScenarioUpdate contains the fields to update in the index for a scenario.
type ScenarioUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Session   *core.SessionInfo
	State     *core.CheckboxState
	Clicked   int
	Skipped   int
	Error     *Error
}

// NewError builds report error details from err, nil when err is nil.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{
		Kind:    core.ErrorKind(err),
		Message: err.Error(),
	}
	if ee, ok := core.AsExecutionError(err); ok {
		e.Category = ee.Category.String()
		e.Details = collectDetails(err)
	}
	return e
}

// collectDetails merges Details from every ExecutionError in the chain, outer
// values winning.
func collectDetails(err error) map[string]interface{} {
	var out map[string]interface{}
	for err != nil {
		if ee, ok := err.(*core.ExecutionError); ok && len(ee.Details) > 0 {
			if out == nil {
				out = make(map[string]interface{})
			}
			for k, v := range ee.Details {
				if _, seen := out[k]; !seen {
					out[k] = v
				}
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return out
}

// FromResult builds the terminal update for a finished scenario.
func FromResult(r *core.ScenarioResult) *ScenarioUpdate {
	start := r.StartTime
	end := start.Add(r.Duration)
	dur := r.Duration.Milliseconds()
	return &ScenarioUpdate{
		Status:    StatusFromOutcome(r.Outcome),
		StartTime: &start,
		EndTime:   &end,
		Duration:  &dur,
		Session:   r.Session,
		State:     r.State,
		Clicked:   r.Clicked,
		Skipped:   r.Skipped,
		Error:     NewError(r.Err),
	}
}
