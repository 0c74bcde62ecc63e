// Package support holds the step definitions of the scanner feature suite.
package support

import (
	"fmt"
	"net/http/httptest"
	"os"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/server"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/gorilla/websocket"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int

	// Test environment
	ProjectRoot string
	TempDir     string

	// Scanning server state
	Scanner    config.ScannerConfig
	ScanServer *server.Server
	HTTPServer *httptest.Server
	Conn       *websocket.Conn
	SessionID  string

	// Messages received in reply to the last client request, up to and
	// including the flushed acknowledgement.
	LastMessages []server.ServerMessage
	// Scan and cleared messages received since the client connected.
	Events []server.ServerMessage
	// LastOutcome is the frame_result outcome of the last frame.
	LastOutcome string

	nextID int
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "codescan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		ProjectRoot: root,
		TempDir:     tempDir,
		Scanner:     config.DefaultConfig().Scanner,
	}, nil
}

// Cleanup closes the connection and server and removes temporary files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.Conn != nil {
		if err := testCtx.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
		testCtx.Conn = nil
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.ScanServer != nil {
		if err := testCtx.ScanServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close server: %w", err))
		}
		testCtx.ScanServer = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

func (testCtx *TestContext) requestID() string {
	testCtx.nextID++
	return fmt.Sprintf("req-%d", testCtx.nextID)
}
