// Package cli implements the tunnelup command-line interface.
//
// Each Cobra command parses its flags, loads the configuration and hands
// the work to another internal package:
//
//	tunnelup <host>            - provision the host (workflow)
//	tunnelup <host> --export   - print a provisioning script (export)
//	tunnelup status <host>     - read-only health checks (doctor)
//	tunnelup logs <host>       - tail the service journal (logpoll)
//	tunnelup uninstall <host>  - stop and remove the service (clean)
//	tunnelup config show|set   - inspect or edit the config file (config)
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color, --json) live on the root
// command. The target flags (-u, -n, -p, -i, --admin-user, --quality) are
// registered per command and only override the config file when set.
//
// # Output
//
// Progress goes through ui.PhaseDisplay. With --json every command writes
// a single JSONEnvelope to stdout and anything interactive is disabled.
package cli
