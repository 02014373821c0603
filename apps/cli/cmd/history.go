package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cmdspec/cmdspec/packages/history"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history <database>",
	Short: "Show summaries of past runs",
	Long: `Show the run summaries recorded with --history, newest first.

Examples:
  cmdspec history runs.db
  cmdspec history runs.db --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Number of runs to show")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("cannot access %s: %w", args[0], err)
	}

	store, err := history.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Started", "Duration", "Passed", "Failed", "Skipped", "Errors", "p95"})
	table.SetBorder(false)

	for _, record := range records {
		table.Append([]string{
			record.StartedAt.Local().Format(time.DateTime),
			record.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", record.Passed),
			fmt.Sprintf("%d", record.Failed),
			fmt.Sprintf("%d", record.Skipped),
			fmt.Sprintf("%d", record.Errors),
			record.P95.Round(time.Millisecond).String(),
		})
	}
	table.Render()

	return nil
}
