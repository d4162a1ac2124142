package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Download channels for the VS Code CLI.
const (
	QualityStable  = "stable"
	QualityInsider = "insider"
)

// Config represents ~/.config/tunnelup/config.yaml. Every field can also be
// set through a TUNNELUP_* environment variable, and flags override both.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// User is the service account the tunnel runs as.
	User string `yaml:"user" mapstructure:"user"`

	// TunnelName is the name the tunnel registers under. Empty means derive
	// it from the host.
	TunnelName string `yaml:"tunnel_name" mapstructure:"tunnel_name"`

	// AdminUser is the login used to create the service user.
	AdminUser string `yaml:"admin_user" mapstructure:"admin_user"`

	// Port forces the SSH port. 0 leaves it to the host argument
	// (host:port), ~/.ssh/config, or 22.
	Port         int    `yaml:"port" mapstructure:"port"`
	IdentityFile string `yaml:"identity_file" mapstructure:"identity_file"`

	// Quality selects the download channel: stable or insider.
	Quality string `yaml:"quality" mapstructure:"quality"`

	Timeouts TimeoutConfig `yaml:"timeouts" mapstructure:"timeouts"`
	Journal  JournalConfig `yaml:"journal" mapstructure:"journal"`
	Output   OutputConfig  `yaml:"output" mapstructure:"output"`
}

// TimeoutConfig holds the time budgets of the workflow.
type TimeoutConfig struct {
	Connect      time.Duration `yaml:"connect" mapstructure:"connect"`
	DeviceCode   time.Duration `yaml:"device_code" mapstructure:"device_code"`
	Connection   time.Duration `yaml:"connection" mapstructure:"connection"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// JournalConfig controls how much of the service log each poll reads.
type JournalConfig struct {
	Lines int `yaml:"lines" mapstructure:"lines"`
}

// OutputConfig controls terminal output and the device-code helper.
type OutputConfig struct {
	// Color is auto, always or never.
	Color     string `yaml:"color" mapstructure:"color"`
	Clipboard bool   `yaml:"clipboard" mapstructure:"clipboard"`
	Browser   bool   `yaml:"browser" mapstructure:"browser"`
}

// Target identifies the remote host. It is fixed once a run starts.
type Target struct {
	Host         string
	Port         int
	IdentityFile string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:   CurrentConfigVersion,
		User:      "vscode",
		AdminUser: "root",
		Quality:   QualityStable,
		Timeouts: TimeoutConfig{
			Connect:      10 * time.Second,
			DeviceCode:   60 * time.Second,
			Connection:   180 * time.Second,
			PollInterval: 2 * time.Second,
		},
		Journal: JournalConfig{
			Lines: 50,
		},
		Output: OutputConfig{
			Color:     "auto",
			Clipboard: true,
			Browser:   true,
		},
	}
}
