package output

import (
	"time"

	"github.com/cmdspec/cmdspec/packages/command"
)

// Status is the outcome class of a single test.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
	// StatusError marks an unexpected collaborator failure, as opposed to a
	// test failing as designed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "error"
	}
}

// TestResult is the recorded outcome of one test.
type TestResult struct {
	ID       string
	Title    string
	Number   int
	File     string
	Status   Status
	Message  string
	Duration time.Duration

	// Result is the raw command outcome, nil for skipped tests.
	Result *command.Result
}

// TesterResult aggregates one tester's subtree.
type TesterResult struct {
	ID         string
	Title      string
	File       string
	Skipped    bool
	SkipReason string
	Tests      []TestResult
	Children   []*TesterResult
}

// Walk visits every test result in the subtree, depth-first in run order.
func (t *TesterResult) Walk(visit func(*TesterResult, TestResult)) {
	for _, test := range t.Tests {
		visit(t, test)
	}
	for _, child := range t.Children {
		child.Walk(visit)
	}
}

// Counts tallies the subtree by status.
func (t *TesterResult) Counts() (passed, failed, skipped, errors int) {
	t.Walk(func(_ *TesterResult, test TestResult) {
		switch test.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusError:
			errors++
		}
	})
	return
}
