package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/tree"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate cmdspec documents for configuration errors",
	Long: `Validate cmdspec documents without executing them. This checks YAML
syntax, required keys, validator and extractor parameters, condition
references, group expressions and id uniqueness.

Examples:
  cmdspec validate suite.yml
  cmdspec validate ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .yml or .yaml documents found")
	}

	hasErrors := false
	for _, file := range files {
		doc, warnings, err := config.Load(file)
		if err == nil {
			_, buildWarnings, buildErr := tree.Build(doc, tree.Options{Version: version})
			warnings = append(warnings, buildWarnings...)
			err = buildErr
		}

		for _, warning := range warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", warning)
		}
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	return nil
}
