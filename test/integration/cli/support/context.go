package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment. Commands run inside WorkDir, a fresh temporary
	// directory per scenario.
	WorkDir string
	EnvVars []string

	// In-process server under test
	HTTPServer *httptest.Server
	closeFn    func() error

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPBody       []byte
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a new test context with its own work directory.
func NewTestContext() (*TestContext, error) {
	workDir, err := os.MkdirTemp("", "inpaint-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		WorkDir:         workDir,
		LastHTTPHeaders: map[string]string{},
	}, nil
}

// Cleanup stops the server and removes the work directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.WorkDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.WorkDir, err))
	}
	return errors.Join(errs...)
}

// StopServer stops the in-process server if one is running.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPServer == nil {
		return nil
	}
	testCtx.HTTPServer.Close()
	testCtx.HTTPServer = nil
	if testCtx.closeFn != nil {
		err := testCtx.closeFn()
		testCtx.closeFn = nil
		return err
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// Path resolves a scenario-relative file name inside the work directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkDir, name)
}
