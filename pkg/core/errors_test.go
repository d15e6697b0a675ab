package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{Category: ErrCategoryAssertion, Code: "test_error", Message: "test message"}
	assert.Equal(t, "test message", err.Error())
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	err := ErrTimeout.WithCause(errors.New("underlying error"))
	assert.Contains(t, err.Error(), "wait condition timed out")
	assert.Contains(t, err.Error(), "underlying error")
}

func TestExecutionError_IsMatchesByCode(t *testing.T) {
	derived := ErrElementNotFound.
		WithMessage("anchor \"Green\" not found").
		WithDetails(map[string]interface{}{"anchor": "Green"})

	wrapped := fmt.Errorf("resolve: %w", derived)
	assert.True(t, errors.Is(wrapped, ErrElementNotFound))
	assert.False(t, errors.Is(wrapped, ErrRelationUnsatisfiable))
}

func TestExecutionError_IsThroughCause(t *testing.T) {
	err := ErrSectionOpenFailed.WithCause(ErrTimeout.WithMessage("not clickable"))
	assert.True(t, errors.Is(err, ErrSectionOpenFailed))
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestExecutionError_WithDetailsDoesNotMutateSentinel(t *testing.T) {
	first := ErrTimeout.WithDetails(map[string]interface{}{"condition": "a"})
	second := first.WithDetails(map[string]interface{}{"appeared": true})

	assert.Nil(t, ErrTimeout.Details)
	assert.Equal(t, map[string]interface{}{"condition": "a"}, first.Details)
	assert.Equal(t, map[string]interface{}{"condition": "a", "appeared": true}, second.Details)
}

func TestAsExecutionError(t *testing.T) {
	ee, ok := AsExecutionError(fmt.Errorf("wrap: %w", ErrNavigationFailed))
	require.True(t, ok)
	assert.Equal(t, ErrCategoryNavigation, ee.Category)

	_, ok = AsExecutionError(errors.New("plain"))
	assert.False(t, ok)
}

func TestCommandError(t *testing.T) {
	assert.NoError(t, CommandError("click", nil))

	err := CommandError("click", errors.New("stale element"))
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "click failed")

	orig := ErrElementNotFound.WithMessage("gone")
	assert.Same(t, orig, CommandError("click", orig))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomePassed},
		{"assertion", ErrAssertionFailed.WithMessage("selected: want true, got false"), OutcomeAssertionFailed},
		{"wrapped assertion", fmt.Errorf("scenario: %w", ErrAssertionFailed), OutcomeAssertionFailed},
		{"timeout", ErrTimeout, OutcomeInfrastructureError},
		{"not found", ErrElementNotFound, OutcomeInfrastructureError},
		{"plain", errors.New("boom"), OutcomeInfrastructureError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "relation_unsatisfiable", ErrorKind(ErrRelationUnsatisfiable.WithMessage("x")))
	assert.Equal(t, "section_open_failed", ErrorKind(ErrSectionOpenFailed.WithCause(ErrTimeout)))
	assert.Equal(t, "cancelled", ErrorKind(context.Canceled))
	assert.Equal(t, "timeout", ErrorKind(context.DeadlineExceeded))
	assert.Equal(t, "unknown", ErrorKind(errors.New("x")))
}

func TestScenarioResult_Fail(t *testing.T) {
	var r ScenarioResult
	r.Fail(ErrTimeout.WithMessage("text never matched"))
	assert.Equal(t, OutcomeInfrastructureError, r.Outcome)
	assert.Equal(t, "timeout", r.ErrorKind)
	assert.Equal(t, "text never matched", r.Error)

	var a ScenarioResult
	a.Fail(ErrAssertionFailed)
	assert.Equal(t, OutcomeAssertionFailed, a.Outcome)
	assert.Empty(t, a.ErrorKind)
}
