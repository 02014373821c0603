package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/cmdspec/cmdspec/packages/metrics"
)

// JSON report structures.

type JSONReport struct {
	RunID    string      `json:"runId,omitempty"`
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type JSONTest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	File     string  `json:"file"`
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration"`
	ExitCode *int    `json:"exitCode,omitempty"`
}

// WriteJSON renders the run as an indented JSON report.
func WriteJSON(w io.Writer, runID string, roots []*TesterResult, summary metrics.Summary) error {
	report := JSONReport{
		RunID: runID,
		Summary: JSONSummary{
			Total:   summary.Total(),
			Passed:  summary.Passed,
			Failed:  summary.Failed,
			Skipped: summary.Skipped,
			Errors:  summary.Errors,
		},
		Duration: float64(summary.Duration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	for _, root := range roots {
		root.Walk(func(_ *TesterResult, test TestResult) {
			jt := JSONTest{
				ID:       test.ID,
				Title:    test.Title,
				File:     test.File,
				Status:   test.Status.String(),
				Message:  test.Message,
				Duration: float64(test.Duration.Milliseconds()),
			}
			if test.Result != nil {
				status := test.Result.Status
				jt.ExitCode = &status
			}
			report.Tests = append(report.Tests, jt)
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// JUnit XML structures.

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitFailure `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit renders the run as JUnit XML, one testsuite per root tester.
func WriteJUnit(w io.Writer, roots []*TesterResult, summary metrics.Summary) error {
	suites := JUnitTestSuites{
		Name:      "cmdspec",
		Tests:     summary.Total(),
		Failures:  summary.Failed,
		Errors:    summary.Errors,
		Skipped:   summary.Skipped,
		Time:      summary.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	for _, root := range roots {
		passed, failed, skipped, errors := root.Counts()
		suite := JUnitTestSuite{
			Name:     root.Title,
			Tests:    passed + failed + skipped + errors,
			Failures: failed,
			Errors:   errors,
			Skipped:  skipped,
		}

		root.Walk(func(tester *TesterResult, test TestResult) {
			tc := JUnitTestCase{
				Name:      test.Title,
				ClassName: tester.Title,
				Time:      test.Duration.Seconds(),
			}
			switch test.Status {
			case StatusSkipped:
				tc.Skipped = &JUnitSkipped{Message: test.Message}
			case StatusFailed:
				tc.Failure = &JUnitFailure{
					Message: test.Message,
					Type:    "ValidationFailure",
				}
			case StatusError:
				tc.Error = &JUnitFailure{
					Message: test.Message,
					Type:    "Error",
				}
			}
			suite.Time += test.Duration.Seconds()
			suite.TestCases = append(suite.TestCases, tc)
		})

		suites.TestSuites = append(suites.TestSuites, suite)
	}

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
