package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/cortexa/neurogate/internal/dicomtest"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	output   string
}

// buildBinary compiles the neurogate binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "neurogate-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	// Get the directory of this test file to find the project root
	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/neurogate")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// TestMain compiles the binary once before running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(binaryPath)

	code := m.Run()
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	// Setup: create temp directory before each scenario
	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "neurogate-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	// Teardown: cleanup temp directory after each scenario
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	// Step definitions
	sc.Step(`^a complete brain MRI study in "([^"]*)"$`, tc.completeStudyIn)
	sc.Step(`^a brain MRI study missing the contrast series in "([^"]*)"$`, tc.incompleteStudyIn)
	sc.Step(`^I run neurogate with "([^"]*)"$`, tc.iRunNeurogateWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^the report in "([^"]*)" should record a validation bypass$`, tc.reportRecordsBypass)
	sc.Step(`^the report in "([^"]*)" should not record a validation bypass$`, tc.reportRecordsNoBypass)
}

func (tc *testContext) completeStudyIn(dir string) error {
	dir = strings.ReplaceAll(dir, "{tmpdir}", tc.tmpDir)
	_, err := dicomtest.WriteStudy(dir, dicomtest.BrainStudy("1.2.840.9100", 15))
	return err
}

func (tc *testContext) incompleteStudyIn(dir string) error {
	dir = strings.ReplaceAll(dir, "{tmpdir}", tc.tmpDir)
	specs := dicomtest.BrainStudy("1.2.840.9101", 15)
	// Drop the post-contrast series
	var kept []dicomtest.SeriesSpec
	for _, spec := range specs {
		if strings.Contains(spec.Description, "T1c") {
			continue
		}
		kept = append(kept, spec)
	}
	_, err := dicomtest.WriteStudy(dir, kept)
	return err
}

func (tc *testContext) iRunNeurogateWith(args string) error {
	// Replace {tmpdir} placeholder with actual temp directory
	args = strings.ReplaceAll(args, "{tmpdir}", tc.tmpDir)

	cmd := exec.Command(binaryPath, splitArgs(args)...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	} else {
		tc.exitCode = 0
	}

	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	path = strings.ReplaceAll(path, "{tmpdir}", tc.tmpDir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

// reportBypass reads report.json and returns the validation_bypassed marker.
func (tc *testContext) reportBypass(dir string) (bool, error) {
	dir = strings.ReplaceAll(dir, "{tmpdir}", tc.tmpDir)
	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		return false, fmt.Errorf("read report: %w", err)
	}
	var report struct {
		Result struct {
			ValidationBypassed bool `json:"validation_bypassed"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return false, fmt.Errorf("parse report: %w", err)
	}
	return report.Result.ValidationBypassed, nil
}

func (tc *testContext) reportRecordsBypass(dir string) error {
	bypassed, err := tc.reportBypass(dir)
	if err != nil {
		return err
	}
	if !bypassed {
		return fmt.Errorf("report does not record the validation bypass")
	}
	return nil
}

func (tc *testContext) reportRecordsNoBypass(dir string) error {
	bypassed, err := tc.reportBypass(dir)
	if err != nil {
		return err
	}
	if bypassed {
		return fmt.Errorf("report records a validation bypass for a passing study")
	}
	return nil
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
