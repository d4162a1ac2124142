package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/export"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/rileyhilliard/tunnelup/internal/workflow"
	"github.com/spf13/cobra"
)

// Install flags
var (
	installForce        bool
	installYes          bool
	installNoPassword   bool
	installNoClipboard  bool
	installNoBrowser    bool
	installExport       bool
	installExportScript bool
)

func addInstallFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&installForce, "force", "f", false, "reinstall the CLI and rewrite the unit even if nothing drifted")
	cmd.Flags().BoolVarP(&installYes, "yes", "y", false, "don't ask for confirmation")
	cmd.Flags().BoolVar(&installNoPassword, "no-password", false, "create the service user without setting a password")
	cmd.Flags().BoolVar(&installNoClipboard, "no-clipboard", false, "don't copy the device code to the clipboard")
	cmd.Flags().BoolVar(&installNoBrowser, "no-browser", false, "don't open the sign-in page")
	cmd.Flags().BoolVar(&installExport, "export", false, "print a shell script that provisions the host locally, then exit")
	cmd.Flags().BoolVar(&installExportScript, "export-script", false, "print a script that takes the user and tunnel name as arguments, then exit")
	cmd.MarkFlagsMutuallyExclusive("export", "export-script")
}

// installCommand provisions hostArg, or prints a provisioning script.
func installCommand(cmd *cobra.Command, hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTargetFlags(cmd, rootTarget, cfg); err != nil {
		return err
	}

	switch {
	case installExportScript:
		return exportCommand(cmd.OutOrStdout(), cfg, "", true)
	case installExport:
		return exportCommand(cmd.OutOrStdout(), cfg, hostArg, false)
	}

	if err := requireHost(hostArg, "tunnelup <host>"); err != nil {
		return err
	}

	opts := workflow.OptionsFromConfig(cfg, hostArg)
	opts.Force = installForce
	// passwd needs someone at the terminal.
	opts.NoPassword = installNoPassword || !interactive()
	if installNoClipboard {
		opts.NoClipboard = true
	}
	if installNoBrowser {
		opts.NoBrowser = true
	}
	opts.Helper = !machineMode && (!opts.NoClipboard || !opts.NoBrowser)

	if !installYes && interactive() {
		ok, err := ui.Confirm(fmt.Sprintf("Set up a VS Code tunnel on %s as %s?", hostArg, opts.User), true)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrValidation, "Cancelled", "")
		}
	}

	return runWorkflow(cmd, opts)
}

// exportCommand prints the provisioning script for cfg. The plain script
// needs a tunnel name: an explicit one, or one derived from hostArg.
func exportCommand(w io.Writer, cfg *config.Config, hostArg string, generator bool) error {
	values := export.ValuesFromConfig(cfg)

	var script string
	var err error
	if generator {
		script, err = export.Generator(values)
	} else {
		if values.Tunnel == "" && hostArg != "" {
			values.Tunnel = config.DefaultTunnelName(hostArg)
		}
		if values.Tunnel == "" {
			return errors.New(errors.ErrValidation,
				"--export needs a tunnel name",
				"Pass a host or -n <name>, or use --export-script")
		}
		script, err = export.Script(values)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, script)
	return err
}

func runWorkflow(cmd *cobra.Command, opts workflow.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdout := cmd.OutOrStdout()
	// JSON owns stdout; the passwd dialogue and progress go to stderr.
	terminal := stdout
	if machineMode {
		terminal = cmd.ErrOrStderr()
	}

	w := workflow.New(opts)
	w.Log = commandLogger()
	w.Prompt = passwordPrompt()
	w.RunID = uuid.NewString()[:8]
	w.Stdin = os.Stdin
	w.Stdout = terminal
	w.Stderr = cmd.ErrOrStderr()

	var display *ui.PhaseDisplay
	if !machineMode {
		display = ui.NewPhaseDisplay(terminal, interactive())
		newProgress(display, interactive() && !opts.NoPassword).attach(w)
	}

	wc, err := w.Run(ctx)
	report := wc.Report()

	if machineMode {
		if err != nil {
			_ = WriteJSONFromError(stdout, err, report)
			return &reportedError{err: err}
		}
		return WriteJSONSuccess(stdout, report)
	}
	if err != nil {
		return err
	}

	display.Divider()
	fmt.Fprint(stdout, ui.RenderSummary(summary(report)))
	return nil
}
