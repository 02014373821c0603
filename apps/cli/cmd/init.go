package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new cmdspec project",
	Long: `Initialize a new cmdspec project in the current directory.

This creates:
  - suite.yml            - Root document with an example test
  - tests/example.yml    - Nested document showing extraction and gating

Examples:
  cmdspec init
  cmdspec init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const rootDocument = `tester:
  name: suite
  title: Example suite
  id_pattern: suite-%d

variables:
  greeting: hello world

tests:
  - title: Echo greets the world
    command:
      - echo
      - ${greeting}
    validators:
      - status: 0
      - contains:
          values:
            - hello

testers:
  - tests/*.yml
`

const nestedDocument = `tester:
  name: example
  title: Extraction and gating
  conditionals:
    listed: false

tests:
  - title: Extract the first entry
    command:
      - ls
      - ${cwd}
    extractors:
      - regex:
          pattern: "(\\S+)"
          variable: entry
          on_miss: warn
    conditions:
      on_success:
        listed: true

  - title: Reuse the previous output
    command:
      - ${prev}
    conditions:
      all:
        - listed
    validators:
      - error: false
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	rootFile := filepath.Join(cwd, "suite.yml")
	nestedFile := filepath.Join(cwd, "tests", "example.yml")

	if !forceInit {
		for _, f := range []string{rootFile, nestedFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(nestedFile), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(rootFile, []byte(rootDocument), 0o644); err != nil {
		return fmt.Errorf("failed to create root document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", rootFile)

	if err := os.WriteFile(nestedFile, []byte(nestedDocument), 0o644); err != nil {
		return fmt.Errorf("failed to create nested document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", nestedFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ncmdspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'cmdspec run suite.yml' to execute the example tests.\n")

	return nil
}
