package testutil

import (
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	if math.IsNaN(expected) && math.IsNaN(actual) {
		return
	}
	diff := math.Abs(expected - actual)
	assert.True(t, diff <= tolerance,
		"expected %f to be within %f of %f (diff: %f). %s",
		actual, tolerance, expected, diff, fmt.Sprint(msgAndArgs...))
}

// AssertValidationErrors asserts that err mentions every expected fragment
func AssertValidationErrors(t *testing.T, err error, expectedErrors ...string) {
	t.Helper()

	require.Error(t, err, "validation should return errors")
	for _, expected := range expectedErrors {
		assert.Contains(t, err.Error(), expected, "should contain validation error")
	}
}

// AssertFileExists asserts that a file exists and contains each fragment
func AssertFileExists(t *testing.T, path string, expectedContent ...string) {
	t.Helper()

	require.FileExists(t, path)
	if len(expectedContent) == 0 {
		return
	}
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, expected := range expectedContent {
		assert.Contains(t, string(content), expected, "file should contain expected content")
	}
}
