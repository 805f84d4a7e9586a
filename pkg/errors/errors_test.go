package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapError(cause, ErrorTypeStorage, CodeWriteFailed, "failed to write").
		WithContext("path", "/tmp/out.csv").
		WithDetails("after 3 records")

	assert.Equal(t, "WRITE_FAILED: failed to write - after 3 records: disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, NewAppError(ErrorTypeStorage, CodeWriteFailed, "other message")))
	assert.False(t, errors.Is(err, NewAppError(ErrorTypeExport, CodeWriteFailed, "")))
	assert.Equal(t, "/tmp/out.csv", err.Context["path"])
}

func TestConstructorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{NewValidationError(CodeInvalidSchema, "bad"), ErrInvalidInputData},
		{NewConfigurationError(CodeInvalidMetric, "bad"), ErrInvalidConfiguration},
		{NewStorageError(CodeUploadFailed, "bad"), ErrStorageWriteFailed},
		{NewUnknownValueError("zip", "99999"), ErrUnknownValue},
		{&SuppressionBudgetExceededError{Node: "[1 0]", Required: 3, Allowed: 1, Records: 10}, ErrSuppressionBudgetExceeded},
		{&NoFeasibleTransformationError{Evaluated: 4}, ErrNoFeasibleTransformation},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.want))
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.want))
		})
	}
}

func TestSentinelCauseNotRepeated(t *testing.T) {
	err := NewConfigurationError(CodeInvalidMetric, "unknown metric")
	assert.Equal(t, "INVALID_METRIC: unknown metric", err.Error())
}

func TestUnknownValueErrorMessage(t *testing.T) {
	err := NewUnknownValueError("zip", "99999")
	assert.Equal(t, `unknown value "99999" for attribute "zip"`, err.Error())
	err.RecordID = 7
	assert.Equal(t, `unknown value "99999" for attribute "zip" (record 7)`, err.Error())

	var target *UnknownValueError
	require.True(t, errors.As(fmt.Errorf("classify: %w", err), &target))
	assert.Equal(t, 7, target.RecordID)
}

func TestNoFeasibleTransformationMessage(t *testing.T) {
	err := &NoFeasibleTransformationError{
		Evaluated:        48,
		BestEffort:       []int{3, 1, 3},
		ViolatingClasses: 1,
		ViolatingRecords: 12,
		Failures:         map[string]int{"k-anonymity(k=13)": 1},
	}
	assert.Equal(t,
		"no feasible transformation among 48 evaluated nodes; best effort [3 1 3] leaves 1 violating classes (12 records) [k-anonymity(k=13): 1]",
		err.Error())
}

func TestSearchCancelledMatchesBoth(t *testing.T) {
	err := &SearchCancelledError{Evaluated: 5, Cause: context.Canceled}
	assert.True(t, errors.Is(err, ErrSearchCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.NoError(t, ve.ErrOrNil())

	ve.Add("suppression_limit", CodeInvalidSuppression, "must be within [0, 1]", 1.5)
	ve.Add("privacy_models", CodeInvalidPrivacyModel, "at least one privacy model is required", nil)
	err := ve.ErrOrNil()
	require.Error(t, err)
	assert.Equal(t,
		"invalid configuration: suppression_limit: must be within [0, 1] (got 1.5); privacy_models: at least one privacy model is required",
		err.Error())
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
