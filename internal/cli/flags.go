package cli

import (
	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/spf13/cobra"
)

// TargetFlags holds the flags that pick the host login and tunnel identity.
// They override the config file and environment when set.
type TargetFlags struct {
	User         string
	TunnelName   string
	AdminUser    string
	Port         int
	IdentityFile string
	Quality      string
}

// rootTarget backs the root command; status, logs and uninstall register
// their own copies.
var rootTarget TargetFlags

// addTargetFlags registers -u, -n, -p, -i, --admin-user and --quality.
func addTargetFlags(cmd *cobra.Command, flags *TargetFlags) {
	cmd.Flags().StringVarP(&flags.User, "user", "u", "", "service user the tunnel runs as (default vscode)")
	cmd.Flags().StringVarP(&flags.TunnelName, "name", "n", "", "tunnel name (default derived from the host)")
	cmd.Flags().StringVar(&flags.AdminUser, "admin-user", "", "login used to create the service user (default root)")
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "SSH port (default: host:port, then ~/.ssh/config, then 22)")
	cmd.Flags().StringVarP(&flags.IdentityFile, "identity", "i", "", "SSH private key")
	cmd.Flags().StringVar(&flags.Quality, "quality", "", "VS Code CLI channel: stable or insider")
}

// applyTargetFlags copies the flags the operator set onto cfg and
// validates the result.
func applyTargetFlags(cmd *cobra.Command, flags TargetFlags, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("user") {
		cfg.User = flags.User
	}
	if changed("name") {
		cfg.TunnelName = flags.TunnelName
	}
	if changed("admin-user") {
		cfg.AdminUser = flags.AdminUser
	}
	if changed("port") {
		cfg.Port = flags.Port
	}
	if changed("identity") {
		cfg.IdentityFile = config.ExpandTilde(flags.IdentityFile)
	}
	if changed("quality") {
		cfg.Quality = flags.Quality
	}
	return config.Validate(cfg)
}

// requireHost fails with a usage hint when no host was given.
func requireHost(host, usage string) error {
	if host == "" {
		return errors.New(errors.ErrValidation, "No host given", "Usage: "+usage)
	}
	return nil
}

// tunnelName is the configured name, or the one derived from host.
func tunnelName(cfg *config.Config, host string) string {
	if cfg.TunnelName != "" {
		return cfg.TunnelName
	}
	return config.DefaultTunnelName(host)
}
