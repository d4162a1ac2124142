package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/spf13/cobra"
)

// configCmd groups the config subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and TUNNELUP_*
environment variables are merged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCommand(cmd)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the config file",
	Long: `Write one value into the config file, creating it if needed.
Comments and the order of existing keys are preserved.

Examples:
  tunnelup config set user alice
  tunnelup config set timeouts.device_code 2m
  tunnelup config set output.browser false`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.KnownKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetCommand(cmd, args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func configShowCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(cmd.OutOrStdout(), cfg)
	}
	data, err := config.YAML(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func configSetCommand(cmd *cobra.Command, key, value string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Can't find the home directory",
			"Pass --config <path>")
	}

	if err := config.Set(path, strings.TrimSpace(key), value); err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(cmd.OutOrStdout(), map[string]string{"path": path, "key": key, "value": value})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key, path)
	return nil
}
