package support

import (
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

const commandTimeout = 60 * time.Second

// iRunCommand executes a command inside the work directory and stores the
// result. The command fails the step only if it cannot be started.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "inpaint" {
		if bin := os.Getenv("INPAINT_BIN"); bin != "" {
			parts[0] = bin
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // commands come from feature files
	cmd.Dir = testCtx.WorkDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastExitCode = 0
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			return fmt.Errorf("failed to run %q: %w", command, err)
		}
	}
	return nil
}

// substituteCommandVariables replaces {workdir} with the scenario directory.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{workdir}", testCtx.WorkDir)
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// outputJSON extracts the last JSON document from the output. Log lines are
// JSON too, so the report is taken as the trailing multi-line block.
func (testCtx *TestContext) outputJSON() (map[string]any, error) {
	output := strings.TrimSpace(testCtx.LastOutput)
	start := strings.LastIndex(output, "\n{\n")
	if start >= 0 {
		output = output[start+1:]
	} else if !strings.HasPrefix(output, "{") {
		return nil, fmt.Errorf("no JSON object in output:\n%s", testCtx.LastOutput)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(output), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, output)
	}
	return data, nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.outputJSON()
	return err
}

// theJSONShouldContain checks that a dotted field path exists.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return checkFieldExists(data, field)
}

func checkFieldExists(data map[string]any, field string) error {
	var current any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return fmt.Errorf("field %s: %v is not an object", field, current)
		}
		if current, ok = m[part]; !ok {
			return fmt.Errorf("JSON does not contain field %s", field)
		}
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, value string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	got, ok := data[field]
	if !ok {
		return fmt.Errorf("JSON does not contain field %s", field)
	}
	if fmt.Sprint(got) != value {
		return fmt.Errorf("field %s is %v, want %s", field, got, value)
	}
	return nil
}

func (testCtx *TestContext) theJSONArrayShouldHaveItems(field string, n int) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	items, ok := data[field].([]any)
	if !ok {
		return fmt.Errorf("field %s is not an array", field)
	}
	if len(items) != n {
		return fmt.Errorf("field %s has %d items, want %d", field, len(items), n)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err == nil {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", name, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// RegisterCommonSteps registers the command and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON array "([^"]*)" should have (\d+) items?$`, testCtx.theJSONArrayShouldHaveItems)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
