package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/tree"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List the test tree defined by cmdspec documents",
	Long: `List every tester and test defined by .yml or .yaml documents,
including nested documents, with their ids and groups.

Examples:
  cmdspec list suite.yml
  cmdspec list ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .yml or .yaml documents found")
	}

	for _, file := range files {
		doc, _, err := config.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		root, _, err := tree.Build(doc, tree.Options{Version: version})
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error building %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		printTester(cmd, root, "  ")
	}

	return nil
}

func printTester(cmd *cobra.Command, tester *tree.Tester, indent string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s [%s]\n", indent, tester.Title, tester.ID)
	for _, test := range tester.Tests {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  - %s [%s]\n", indent, test.Title, test.ID)
		if groups := formatGroups(test.Groups); groups != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s    groups: %s\n", indent, groups)
		}
	}
	for _, child := range tester.Children {
		printTester(cmd, child, indent+"  ")
	}
}

func formatGroups(paths [][]string) string {
	var rendered []string
	for _, path := range paths {
		if len(path) == 0 {
			continue
		}
		rendered = append(rendered, strings.Join(path, ","))
	}
	return strings.Join(rendered, " ")
}
