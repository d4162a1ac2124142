package cli

import (
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for tunnelup.

Examples:
  # Bash
  tunnelup completion bash > /etc/bash_completion.d/tunnelup

  # Zsh
  tunnelup completion zsh > "${fpath[1]}/_tunnelup"

  # Fish
  tunnelup completion fish > ~/.config/fish/completions/tunnelup.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrValidation,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeHosts offers the concrete Host aliases from ~/.ssh/config for the
// host argument.
func completeHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	hosts, err := sshutil.ConfigHosts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return sshutil.CompletionCandidates(hosts, toComplete), cobra.ShellCompDirectiveNoFileComp
}
