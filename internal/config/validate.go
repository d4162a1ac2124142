package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
)

// MaxTunnelNameLength is the longest tunnel name the service accepts.
const MaxTunnelNameLength = 64

var (
	// POSIX portable username: lowercase letter first, 1-32 chars.
	userPattern   = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	tunnelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	tunnelInvalid = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ValidateUser checks a service or admin account name.
func ValidateUser(name string) error {
	if userPattern.MatchString(name) {
		return nil
	}
	return errors.New(errors.ErrValidation,
		fmt.Sprintf("Username '%s' isn't a valid Linux user name", name),
		"Use 1-32 chars: a lowercase letter, then lowercase letters, digits, '_' or '-'")
}

// ValidateTunnelName checks a tunnel name.
func ValidateTunnelName(name string) error {
	if tunnelPattern.MatchString(name) {
		return nil
	}
	return errors.New(errors.ErrValidation,
		fmt.Sprintf("Tunnel name '%s' is invalid", name),
		fmt.Sprintf("Use 1-%d chars: letters, digits, '_' or '-'", MaxTunnelNameLength))
}

// DefaultTunnelName derives a tunnel name from a host argument: the short
// host name, or the address with separators replaced for IPs.
func DefaultTunnelName(host string) string {
	if i := strings.LastIndex(host, "@"); i != -1 {
		host = host[i+1:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if net.ParseIP(host) == nil {
		if i := strings.Index(host, "."); i > 0 {
			host = host[:i]
		}
	}

	name := strings.Trim(tunnelInvalid.ReplaceAllString(host, "-"), "-")
	if len(name) > MaxTunnelNameLength {
		name = strings.TrimRight(name[:MaxTunnelNameLength], "-")
	}
	if name == "" {
		return "tunnel"
	}
	return name
}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but tunnelup only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade tunnelup, or lower the version in the config file")
	}

	if err := ValidateUser(cfg.User); err != nil {
		return err
	}
	if err := ValidateUser(cfg.AdminUser); err != nil {
		return err
	}
	if cfg.TunnelName != "" {
		if err := ValidateTunnelName(cfg.TunnelName); err != nil {
			return err
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("Port %d is out of range", cfg.Port),
			"Use a port between 1 and 65535, or 0 for the default")
	}

	switch cfg.Quality {
	case QualityStable, QualityInsider:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown quality '%s'", cfg.Quality),
			"Use 'stable' or 'insider'")
	}

	switch cfg.Output.Color {
	case "auto", "always", "never":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown color mode '%s'", cfg.Output.Color),
			"Use 'auto', 'always' or 'never'")
	}

	t := cfg.Timeouts
	if t.Connect <= 0 || t.DeviceCode <= 0 || t.Connection <= 0 || t.PollInterval <= 0 {
		return errors.New(errors.ErrConfig,
			"Timeouts must be positive",
			"Check the timeouts section, e.g. device_code: 60s")
	}
	if t.PollInterval > t.DeviceCode || t.PollInterval > t.Connection {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Poll interval %s is longer than a wait budget", t.PollInterval),
			"Lower timeouts.poll_interval")
	}

	if cfg.Journal.Lines < 1 {
		return errors.New(errors.ErrConfig,
			"journal.lines must be at least 1",
			"The default is 50")
	}

	return nil
}
