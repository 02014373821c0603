package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/metrics"
)

func sampleResults() []*TesterResult {
	return []*TesterResult{
		{
			ID:    "root",
			Title: "Root Suite",
			File:  "suite.yml",
			Tests: []TestResult{
				{ID: "t1", Title: "first", Number: 1, File: "suite.yml", Status: StatusPassed,
					Duration: 12 * time.Millisecond, Result: &command.Result{Status: 0}},
				{ID: "t2", Title: "second", Number: 2, File: "suite.yml", Status: StatusFailed,
					Message: "string 'ok' was not found in command output",
					Result:  &command.Result{Status: 1}},
			},
			Children: []*TesterResult{
				{
					ID:    "child",
					Title: "Child Suite",
					File:  "child.yml",
					Tests: []TestResult{
						{ID: "t3", Title: "third", Number: 1, File: "child.yml", Status: StatusSkipped,
							Message: "condition gate not satisfied"},
					},
				},
			},
		},
	}
}

func TestTesterResultCounts(t *testing.T) {
	passed, failed, skipped, errors := sampleResults()[0].Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, errors)
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithWriter(&buf), WithNoColor(true), WithVerbosity(VerbosityFull))

	c.Header("1.0.0")
	c.TesterStart("Root Suite")
	c.Push()
	c.TestStart(1, 2, "first")
	c.TestPassed()
	c.TestStart(2, 2, "second")
	c.TestFailed("value missing", "stdout line\nstderr line")
	c.Pop()

	out := buf.String()
	assert.Contains(t, out, "cmdspec v1.0.0")
	assert.Contains(t, out, "Starting test: Root Suite")
	assert.Contains(t, out, "1/2 first... success")
	assert.Contains(t, out, "2/2 second... failed")
	assert.Contains(t, out, "value missing")
	assert.Contains(t, out, "stderr line")
}

func TestConsoleVerbosityQuiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithWriter(&buf), WithNoColor(true), WithVerbosity(VerbosityQuiet))

	c.TestStart(1, 1, "first")
	c.TestFailed("value missing", "command output")

	out := buf.String()
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "value missing")
	assert.NotContains(t, out, "command output")
}

func TestConsoleLogfileTee(t *testing.T) {
	var console, logfile bytes.Buffer
	c := NewConsole(WithWriter(&console), WithLogfile(&logfile), WithNoColor(true))

	c.Info("hello")
	assert.Equal(t, console.String(), logfile.String())
	assert.Contains(t, logfile.String(), "hello")
}

func TestConsoleIndentation(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithWriter(&buf), WithNoColor(true))

	c.Info("outer")
	c.Push()
	c.Info("inner")
	c.Pop()
	c.Pop()
	c.Info("outer again")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[+] outer", lines[0])
	assert.Equal(t, "[+]     inner", lines[1])
	assert.Equal(t, "[+] outer again", lines[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	summary := metrics.Summary{Passed: 1, Failed: 1, Skipped: 1, Duration: 100 * time.Millisecond}

	require.NoError(t, WriteJSON(&buf, "run-123", sampleResults(), summary))

	var report JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "run-123", report.RunID)
	assert.Equal(t, 3, report.Summary.Total)
	require.Len(t, report.Tests, 3)
	assert.Equal(t, "passed", report.Tests[0].Status)
	assert.Equal(t, "failed", report.Tests[1].Status)
	require.NotNil(t, report.Tests[1].ExitCode)
	assert.Equal(t, 1, *report.Tests[1].ExitCode)
	assert.Equal(t, "skipped", report.Tests[2].Status)
}

func TestWriteJUnit(t *testing.T) {
	var buf bytes.Buffer
	summary := metrics.Summary{Passed: 1, Failed: 1, Skipped: 1, Duration: time.Second}

	require.NoError(t, WriteJUnit(&buf, sampleResults(), summary))

	out := buf.String()
	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `testsuite name="Root Suite"`)
	assert.Contains(t, out, `classname="Child Suite"`)
	assert.Contains(t, out, "ValidationFailure")
	assert.Contains(t, out, "<skipped")
}

func TestConsoleSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithWriter(&buf), WithNoColor(true))

	summary := metrics.Summary{Passed: 1, Failed: 1, Skipped: 1, Duration: 250 * time.Millisecond}
	c.Summary(sampleResults(), summary)

	out := buf.String()
	assert.Contains(t, out, "Root Suite")
	assert.Contains(t, out, "Child Suite")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "3 total")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "passed", StatusPassed.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "error", StatusError.String())
}
