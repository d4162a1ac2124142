package cli

import (
	"context"
	"io"

	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/spf13/cobra"
)

var (
	logsTarget TargetFlags
	logsLines  int
)

// logsCmd prints the tail of the tunnel service's journal.
var logsCmd = &cobra.Command{
	Use:   "logs <host>",
	Short: "Show the tunnel service log",
	Long: `Print the last lines of the code-tunnel service journal on a host.

Examples:
  tunnelup logs devbox
  tunnelup logs devbox -l 200`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		return logsCommand(cmd, args[0])
	},
}

func init() {
	addTargetFlags(logsCmd, &logsTarget)
	logsCmd.Flags().IntVarP(&logsLines, "lines", "l", 0, "number of lines (default journal.lines)")
	rootCmd.AddCommand(logsCmd)
}

// LogsOutput is the JSON output of the logs command.
type LogsOutput struct {
	Host  string `json:"host"`
	Unit  string `json:"unit"`
	Lines int    `json:"lines"`
	Log   string `json:"log"`
}

func logsCommand(cmd *cobra.Command, hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTargetFlags(cmd, logsTarget, cfg); err != nil {
		return err
	}
	lines := cfg.Journal.Lines
	if logsLines > 0 {
		lines = logsLines
	}

	runner, err := connectRoot(cfg, hostArg)
	if err != nil {
		return err
	}
	defer runner.Client().Close()

	source := logpoll.JournalSource{Client: runner, Unit: unit.Name, Lines: lines}
	text, err := source.Fetch(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if machineMode {
		return WriteJSONSuccess(out, LogsOutput{Host: hostArg, Unit: unit.Name, Lines: lines, Log: text})
	}
	_, err = io.WriteString(out, text)
	return err
}
