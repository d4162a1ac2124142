package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/clean"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
	"github.com/spf13/cobra"
)

var (
	uninstallTarget TargetFlags
	uninstallPurge  bool
	uninstallYes    bool
)

// uninstallCmd stops the tunnel and removes its unit.
var uninstallCmd = &cobra.Command{
	Use:   "uninstall <host>",
	Short: "Stop the tunnel and remove it from a host",
	Long: `Stop and disable the code-tunnel service and delete its unit file.

The service user and its home directory are kept. The VS Code CLI binary
is only removed with --purge.

Examples:
  tunnelup uninstall devbox
  tunnelup uninstall devbox --purge --yes`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		return uninstallCommand(cmd, args[0])
	},
}

func init() {
	addTargetFlags(uninstallCmd, &uninstallTarget)
	uninstallCmd.Flags().BoolVar(&uninstallPurge, "purge", false, "also delete "+unit.BinaryPath)
	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "don't ask for confirmation")
	rootCmd.AddCommand(uninstallCmd)
}

// UninstallOutput is the JSON output of the uninstall command.
type UninstallOutput struct {
	Host    string   `json:"host"`
	Removed []string `json:"removed"`
}

func uninstallCommand(cmd *cobra.Command, hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTargetFlags(cmd, uninstallTarget, cfg); err != nil {
		return err
	}

	runner, err := connectRoot(cfg, hostArg)
	if err != nil {
		return err
	}
	defer runner.Client().Close()

	found, err := clean.Discover(runner, uninstallPurge)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Couldn't look for installed files on "+hostArg,
			"Check the SSH connection")
	}

	out := cmd.OutOrStdout()
	if !machineMode {
		if len(found) == 0 {
			fmt.Fprintf(out, "No unit file on %s, stopping the service if it runs\n", hostArg)
		} else {
			fmt.Fprintf(out, "Will stop %s and delete:\n", unit.Name)
			for _, a := range found {
				fmt.Fprintf(out, "  %s %s\n", ui.MutedStyle().Render(ui.SymbolPending), a.Path)
			}
		}
	}

	if !uninstallYes && interactive() && len(found) > 0 {
		ok, err := ui.Confirm(fmt.Sprintf("Remove the tunnel from %s?", hostArg), false)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrValidation, "Cancelled", "")
		}
	}

	removed, errs := clean.Remove(runner, found)
	if removed == nil {
		removed = []string{}
	}
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return errors.New(errors.ErrServiceConfig,
			fmt.Sprintf("Uninstall on %s hit %d %s", hostArg, len(errs), util.Pluralize(len(errs), "error", "errors")),
			strings.Join(msgs, "\n  "))
	}

	if machineMode {
		return WriteJSONSuccess(out, UninstallOutput{Host: hostArg, Removed: removed})
	}
	fmt.Fprintf(out, "%s Removed the tunnel from %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), hostArg)
	return nil
}
