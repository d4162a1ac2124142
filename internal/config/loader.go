package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory for the config file, relative to $HOME.
	GlobalConfigDir = ".config/tunnelup"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. TUNNELUP_USER.
	EnvPrefix = "TUNNELUP"
)

// DefaultPath returns ~/.config/tunnelup/config.yaml, or "" if $HOME is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Load builds the effective configuration: defaults, then the config file,
// then TUNNELUP_* environment variables. An explicit path must exist; the
// default path is optional.
func Load(explicit string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := explicit
	if path == "" {
		path = DefaultPath()
	}

	used := ""
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := os.IsNotExist(err) || stderrors.As(err, &notFound)
			switch {
			case missing && explicit != "":
				return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			case !missing:
				return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
					"Failed to read config file "+path,
					"Check the file is valid YAML")
			}
		} else {
			used = path
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	cfg.IdentityFile = ExpandTilde(cfg.IdentityFile)

	return cfg, used, nil
}

// setDefaults registers every key so AutomaticEnv can override it even when
// the file does not mention it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("user", d.User)
	v.SetDefault("tunnel_name", d.TunnelName)
	v.SetDefault("admin_user", d.AdminUser)
	v.SetDefault("port", d.Port)
	v.SetDefault("identity_file", d.IdentityFile)
	v.SetDefault("quality", d.Quality)
	v.SetDefault("timeouts.connect", d.Timeouts.Connect)
	v.SetDefault("timeouts.device_code", d.Timeouts.DeviceCode)
	v.SetDefault("timeouts.connection", d.Timeouts.Connection)
	v.SetDefault("timeouts.poll_interval", d.Timeouts.PollInterval)
	v.SetDefault("journal.lines", d.Journal.Lines)
	v.SetDefault("output.color", d.Output.Color)
	v.SetDefault("output.clipboard", d.Output.Clipboard)
	v.SetDefault("output.browser", d.Output.Browser)
}

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Use this for LOCAL paths only.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
