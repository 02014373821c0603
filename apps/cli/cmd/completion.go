package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Generate a shell completion script",
	Long: `Generate a completion script for the given shell and print it to
stdout. Completion covers subcommands and flags, including the value
sets of enumerated flags such as 'run --output'.

Load it directly for the current session, e.g.

  source <(cmdspec completion bash)
  cmdspec completion fish | source

or install it where your shell picks it up at startup:

  cmdspec completion bash > /etc/bash_completion.d/cmdspec
  cmdspec completion zsh  > "${fpath[1]}/_cmdspec"
  cmdspec completion fish > ~/.config/fish/completions/cmdspec.fish`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return root.GenZshCompletion(os.Stdout)
		case "fish":
			return root.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
