package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
)

// rootCmd provisions a host when called with one.
var rootCmd = &cobra.Command{
	Use:   "tunnelup <host>",
	Short: "Run a VS Code tunnel on a remote Linux host",
	Long: `tunnelup installs the VS Code CLI on a remote Linux host over SSH and
runs its tunnel as a systemd service under a dedicated user.

It logs in as the service user, falling back to the admin user to create
it. Every step is idempotent: re-running only fixes what drifted, and a
host that's already signed in connects without a new device code.

Examples:
  tunnelup devbox
  tunnelup devbox -u alice -n lab
  tunnelup 10.0.0.5 --admin-user ubuntu -i ~/.ssh/id_ed25519
  tunnelup --export devbox > provision.sh`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeHosts,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetVerbose(verbose)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		host := ""
		if len(args) == 1 {
			host = args[0]
		}
		return installCommand(cmd, host)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/tunnelup/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "machine-readable JSON output")

	addTargetFlags(rootCmd, &rootTarget)
	addInstallFlags(rootCmd)
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if isUnknownCommandError(err) {
		fmt.Fprintf(os.Stderr, "%s\nRun 'tunnelup --help' for usage.\n", err)
		os.Exit(1)
	}

	var shown *reportedError
	switch {
	case stderrors.As(err, &shown):
		// Already printed by the command.
	case machineMode:
		_ = WriteJSONFromError(os.Stdout, err, nil)
	default:
		fmt.Fprint(os.Stderr, formatError(err))
	}
	os.Exit(errors.ExitCode(err))
}

// reportedError marks an error the command already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// formatError renders err for the terminal. Coded errors already carry
// their own layout.
func formatError(err error) string {
	var tErr *errors.Error
	if stderrors.As(err, &tErr) {
		return ui.ErrorStyle().Render(strings.TrimRight(tErr.Error(), "\n")) + "\n"
	}
	return ui.ErrorStyle().Render(ui.SymbolFail+" "+err.Error()) + "\n"
}

// isUnknownCommandError reports cobra's unknown command and flag errors.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// loadConfig loads and validates the effective configuration, then sets
// the color mode it asks for.
func loadConfig() (*config.Config, error) {
	cfg, path, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	logger.Default().Debug("config: %s", describePath(path))

	switch {
	case noColor, machineMode:
		ui.DisableColors()
	default:
		ui.SetColorMode(cfg.Output.Color, os.Stdout)
	}
	return cfg, nil
}

func describePath(path string) string {
	if path == "" {
		return "defaults"
	}
	return path
}

// interactive reports whether prompts and spinners can use the terminal.
func interactive() bool {
	return !machineMode &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stderr.Fd()))
}
