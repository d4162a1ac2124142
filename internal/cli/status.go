package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/doctor"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/spf13/cobra"
)

var statusTarget TargetFlags

// statusCmd reports what's installed without changing anything.
var statusCmd = &cobra.Command{
	Use:   "status <host>",
	Short: "Check the tunnel on a host",
	Long: `Check the service user, the VS Code CLI, the unit file, the service and
the tunnel's sign-in state on a host. Nothing on the host is changed.

Exits non-zero when a check fails.

Examples:
  tunnelup status devbox
  tunnelup status devbox --json`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd, args[0])
	},
}

func init() {
	addTargetFlags(statusCmd, &statusTarget)
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output of the status command.
type StatusOutput struct {
	Host    string               `json:"host"`
	Results []doctor.CheckResult `json:"results"`
	Summary StatusCounts         `json:"summary"`
}

// StatusCounts tallies check results.
type StatusCounts struct {
	Pass    int  `json:"pass"`
	Warn    int  `json:"warn"`
	Fail    int  `json:"fail"`
	Healthy bool `json:"healthy"`
}

func statusCommand(cmd *cobra.Command, hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTargetFlags(cmd, statusTarget, cfg); err != nil {
		return err
	}

	runner, err := connectRoot(cfg, hostArg)
	if err != nil {
		return err
	}
	defer runner.Client().Close()

	results := doctor.RunAll(doctor.Checks(runner, doctor.Expect{
		User:   cfg.User,
		Tunnel: tunnelName(cfg, hostArg),
		Rerun:  rerunCommand(cmd, hostArg),
		Lines:  cfg.Journal.Lines,
	}))

	counts := doctor.CountByStatus(results)
	failed := doctor.HasFailures(results)

	out := cmd.OutOrStdout()
	if machineMode {
		if err := WriteJSONSuccess(out, StatusOutput{
			Host:    hostArg,
			Results: results,
			Summary: StatusCounts{
				Pass:    counts[doctor.StatusPass],
				Warn:    counts[doctor.StatusWarn],
				Fail:    counts[doctor.StatusFail],
				Healthy: counts[doctor.StatusWarn] == 0 && !failed,
			},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s %s\n\n", ui.InfoStyle().Render("Tunnel on"), hostArg)
		fmt.Fprint(out, ui.RenderStatusTable(statusRows(results)))
		fmt.Fprintf(out, "\n%s\n", doctor.Summary(results))
	}

	if failed {
		return &reportedError{err: errors.New(errors.ErrServiceConfig,
			fmt.Sprintf("%s has failing checks", hostArg), "")}
	}
	return nil
}

func statusRows(results []doctor.CheckResult) []ui.StatusRow {
	rows := make([]ui.StatusRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, ui.StatusRow{
			Status:     r.Status.String(),
			Item:       r.Name,
			Detail:     r.Message,
			Suggestion: r.Suggestion,
		})
	}
	return rows
}

// rerunCommand rebuilds the install command for hostArg with the identity
// flags the operator passed.
func rerunCommand(cmd *cobra.Command, hostArg string) string {
	parts := []string{"tunnelup", hostArg}
	for _, f := range []struct{ name, short string }{
		{"user", "-u"},
		{"name", "-n"},
		{"admin-user", "--admin-user"},
		{"port", "-p"},
	} {
		if flag := cmd.Flags().Lookup(f.name); flag != nil && flag.Changed {
			parts = append(parts, f.short, flag.Value.String())
		}
	}
	if cfgFile != "" {
		parts = append(parts, "--config", cfgFile)
	}
	return strings.Join(parts, " ")
}
