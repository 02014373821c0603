package output

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/cmdspec/cmdspec/packages/metrics"
)

// Summary prints the final run summary: a per-tester table followed by the
// aggregate counters and latency quantiles.
func (c *Console) Summary(roots []*TesterResult, summary metrics.Summary) {
	fmt.Fprintln(c.writer)

	table := tablewriter.NewWriter(c.writer)
	table.SetHeader([]string{"Tester", "Passed", "Failed", "Skipped", "Errors"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, root := range roots {
		appendTesterRows(table, root, "")
	}
	table.SetFooter([]string{
		"Total",
		strconv.Itoa(summary.Passed),
		strconv.Itoa(summary.Failed),
		strconv.Itoa(summary.Skipped),
		strconv.Itoa(summary.Errors),
	})
	table.Render()

	fmt.Fprintln(c.writer)
	fmt.Fprintf(c.writer, "Tests: ")
	if summary.Passed > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.green(fmt.Sprintf("%d passed", summary.Passed)))
	}
	if summary.Failed > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.red(fmt.Sprintf("%d failed", summary.Failed)))
	}
	if summary.Errors > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.red(fmt.Sprintf("%d errors", summary.Errors)))
	}
	if summary.Skipped > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.yellow(fmt.Sprintf("%d skipped", summary.Skipped)))
	}
	fmt.Fprintf(c.writer, "%d total\n", summary.Total())
	fmt.Fprintf(c.writer, "Time:  %dms (p50 %s, p95 %s, p99 %s)\n",
		summary.Duration.Milliseconds(), summary.P50, summary.P95, summary.P99)
}

func appendTesterRows(table *tablewriter.Table, tester *TesterResult, indent string) {
	passed, failed, skipped, errors := tester.Counts()
	table.Append([]string{
		indent + tester.Title,
		strconv.Itoa(passed),
		strconv.Itoa(failed),
		strconv.Itoa(skipped),
		strconv.Itoa(errors),
	})
	for _, child := range tester.Children {
		appendTesterRows(table, child, indent+"  ")
	}
}
