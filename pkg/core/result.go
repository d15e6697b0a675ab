package core

import (
	"time"
)

// ScenarioResult captures the complete outcome of one verification scenario
type ScenarioResult struct {
	// Identity
	Name       string   `json:"name"`
	SourceFile string   `json:"sourceFile,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// Session info (captured once per scenario)
	Session *SessionInfo `json:"session,omitempty"`

	// Outcome
	Outcome   Outcome `json:"outcome"`
	ErrorKind string  `json:"errorKind,omitempty"` // element_not_found, timeout, ...
	Error     string  `json:"error,omitempty"`

	// Observed state of the target after the interaction settled
	State *CheckboxState `json:"state,omitempty"`

	// Bulk interactions
	Clicked int `json:"clicked,omitempty"`
	Skipped int `json:"skipped,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Err keeps the original error for callers; not serialized.
	Err error `json:"-"`
}

// Fail records err and derives outcome, kind and message from it.
func (r *ScenarioResult) Fail(err error) {
	r.Err = err
	r.Outcome = Classify(err)
	if err != nil {
		r.Error = err.Error()
		if r.Outcome == OutcomeInfrastructureError {
			r.ErrorKind = ErrorKind(err)
		}
	}
}
