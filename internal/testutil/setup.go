// Package testutil holds shared fixtures for package tests: a test
// environment with a quiet logger, small datasets with their hierarchies,
// and assertion helpers.
package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// TestEnvironment provides a logger, a bounded context and a temp dir
type TestEnvironment struct {
	Logger  *logrus.Logger
	Context context.Context
	Cancel  context.CancelFunc
	TempDir string
	T       *testing.T
}

// NewTestEnvironment creates a test environment cleaned up with the test
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	env := &TestEnvironment{
		Logger:  NewLogger(),
		Context: ctx,
		Cancel:  cancel,
		TempDir: t.TempDir(),
		T:       t,
	}
	t.Cleanup(env.Cleanup)
	return env
}

// Cleanup performs test cleanup
func (env *TestEnvironment) Cleanup() {
	if env.Cancel != nil {
		env.Cancel()
	}
}

// NewLogger returns a logger that discards output unless tests run verbose
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}
	return logger
}
