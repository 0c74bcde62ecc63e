package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// commandTimeout bounds a single CLI invocation.
const commandTimeout = 30 * time.Second

// iRunCodescanWith runs the codescan binary from the project root. The
// binary path comes from CODESCAN_BIN, set up by the suite.
func (testCtx *TestContext) iRunCodescanWith(args string) error {
	bin := os.Getenv("CODESCAN_BIN")
	if bin == "" {
		bin = "codescan"
	}
	args = strings.ReplaceAll(args, "$TMP", testCtx.TempDir)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, strings.Fields(args)...) //nolint:gosec // G204: test input
	cmd.Dir = testCtx.ProjectRoot
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	testCtx.LastCommand = "codescan " + args
	testCtx.LastError = cmd.Run()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastExitCode = 0

	var exitErr *exec.ExitError
	switch {
	case errors.As(testCtx.LastError, &exitErr):
		testCtx.LastExitCode = exitErr.ExitCode()
	case testCtx.LastError != nil:
		return fmt.Errorf("failed to run %s: %w", testCtx.LastCommand, testCtx.LastError)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("%s exited with %d: %s", testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("%s succeeded, expected failure", testCtx.LastCommand)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastStderr, text) {
		return fmt.Errorf("stderr does not contain %q:\n%s", text, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := strings.ReplaceAll(name, "$TMP", testCtx.TempDir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

// RegisterCLISteps registers the command line steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run codescan with "([^"]*)"$`, testCtx.iRunCodescanWith)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
