package core

import (
	"context"
	"errors"
)

// Outcome is the one result each scenario reports.
type Outcome int

const (
	OutcomePending             Outcome = iota // Not yet run
	OutcomePassed                             // All expectations held
	OutcomeAssertionFailed                    // Observed state did not match expectation
	OutcomeInfrastructureError                // Resolution, timeout, session or config failure
	OutcomeSkipped                            // Run stopped before the scenario started
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomePassed:
		return "passed"
	case OutcomeAssertionFailed:
		return "assertion_failed"
	case OutcomeInfrastructureError:
		return "infrastructure_error"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the outcome is a final state
func (o Outcome) IsTerminal() bool {
	return o != OutcomePending
}

// IsSuccess returns true only for passed scenarios.
func (o Outcome) IsSuccess() bool {
	return o == OutcomePassed
}

// MarshalText lets reports carry the outcome as its string form.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Classify maps a scenario error to its outcome.
// AssertionFailed is the normal "test failed" result; everything else is
// infrastructure.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomePassed
	}
	if errors.Is(err, ErrAssertionFailed) {
		return OutcomeAssertionFailed
	}
	return OutcomeInfrastructureError
}

// ErrorKind returns the machine code used when reporting an infrastructure error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if ee, ok := AsExecutionError(err); ok {
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Code
	}
	return "unknown"
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Observed state mismatch
	ErrCategoryElement                         // Element/anchor/section could not be resolved
	ErrCategoryTimeout                         // Wait condition never became true
	ErrCategoryNavigation                      // Page failed to load
	ErrCategoryConnection                      // Session/hub connection failure
	ErrCategoryConfig                          // Invalid configuration or locator
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryNavigation:
		return "navigation"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
