package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// shellCompletions maps each supported shell to its cobra generator.
var shellCompletions = map[string]func(*cobra.Command, io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  (*cobra.Command).GenZshCompletion,
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
}

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish>",
		Short: "Generate a shell completion script",
		Long: `Generate a completion script for quarry and write it to stdout.

Load it directly, e.g.:

  source <(quarry completion bash)
  quarry completion zsh > "${fpath[1]}/_quarry"
  quarry completion fish > ~/.config/fish/completions/quarry.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shellCompletions[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
