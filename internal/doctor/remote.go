package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// Executor runs commands on the remote host.
// Satisfied by sshutil.SSHClient, *exec.Runner and test mocks.
type Executor interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
}

// Expect is what the operator believes is installed. Empty fields are not
// compared.
type Expect struct {
	User   string
	Tunnel string
	// Rerun is the command that repairs the host, used in suggestions.
	Rerun string
	// Lines caps the journal window read by the tunnel check.
	Lines int
}

// Checks returns the status checks for one host, in display order.
func Checks(client Executor, e Expect) []Check {
	return []Check{
		&UserCheck{Client: client, User: e.User, Rerun: e.Rerun},
		&BinaryCheck{Client: client, Rerun: e.Rerun},
		&UnitCheck{Client: client, Expect: e},
		&ServiceCheck{Client: client, Rerun: e.Rerun},
		&TunnelCheck{Client: client, Tunnel: e.Tunnel, Lines: e.Lines},
	}
}

func sessionLost(name string, err error) CheckResult {
	return CheckResult{
		Name:       name,
		Status:     StatusFail,
		Message:    fmt.Sprintf("Couldn't check: %v", err),
		Suggestion: "Check the SSH connection",
	}
}

// UserCheck verifies the service user exists.
type UserCheck struct {
	Client Executor
	User   string
	Rerun  string
}

func (c *UserCheck) Name() string { return "user" }

func (c *UserCheck) Run() CheckResult {
	if c.User == "" {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "not checked"}
	}
	_, _, code, err := c.Client.Exec("id -u " + util.ShellQuote(c.User))
	if err != nil {
		return sessionLost(c.Name(), err)
	}
	if code != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s doesn't exist", c.User),
			Suggestion: "Run " + c.Rerun,
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: c.User}
}

// BinaryCheck verifies the VS Code CLI is installed and runs.
type BinaryCheck struct {
	Client Executor
	Rerun  string
}

func (c *BinaryCheck) Name() string { return "binary" }

func (c *BinaryCheck) Run() CheckResult {
	_, _, code, err := c.Client.Exec("test -x " + unit.BinaryPath)
	if err != nil {
		return sessionLost(c.Name(), err)
	}
	if code != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "not installed at " + unit.BinaryPath,
			Suggestion: "Run " + c.Rerun,
		}
	}

	out, _, code, err := c.Client.Exec(unit.BinaryPath + " --version")
	if err != nil {
		return sessionLost(c.Name(), err)
	}
	version := util.FirstLine(string(out))
	if code != 0 || version == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    unit.BinaryPath + " is installed but didn't report a version",
			Suggestion: "Reinstall with " + c.Rerun + " --force",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: "VS Code CLI " + version}
}

// UnitCheck verifies the unit file exists and carries the expected
// identity.
type UnitCheck struct {
	Client Executor
	Expect Expect
}

func (c *UnitCheck) Name() string { return "unit" }

func (c *UnitCheck) Run() CheckResult {
	out, _, code, err := c.Client.Exec("cat " + unit.Path)
	if err != nil {
		return sessionLost(c.Name(), err)
	}
	if code != 0 || strings.TrimSpace(string(out)) == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    unit.Path + " is missing",
			Suggestion: "Run " + c.Expect.Rerun,
		}
	}

	user, tunnel := unit.Identity(string(out))
	msg := fmt.Sprintf("tunnel %s as %s", tunnel, user)

	var drift []string
	if c.Expect.User != "" && user != c.Expect.User {
		drift = append(drift, "user "+c.Expect.User)
	}
	if c.Expect.Tunnel != "" && tunnel != c.Expect.Tunnel {
		drift = append(drift, "tunnel "+c.Expect.Tunnel)
	}
	if len(drift) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s, expected %s", msg, strings.Join(drift, " and ")),
			Suggestion: "Run " + c.Expect.Rerun + " to rewrite the unit",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: msg}
}

// ServiceCheck verifies the unit is enabled and running.
type ServiceCheck struct {
	Client Executor
	Rerun  string
}

func (c *ServiceCheck) Name() string { return "service" }

func (c *ServiceCheck) Run() CheckResult {
	enabled, err := c.systemctl("is-enabled")
	if err != nil {
		return sessionLost(c.Name(), err)
	}
	active, err := c.systemctl("is-active")
	if err != nil {
		return sessionLost(c.Name(), err)
	}

	msg := enabled + ", " + active
	switch {
	case active != "active":
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    msg,
			Suggestion: "Run " + c.Rerun + " to restart it",
		}
	case enabled != "enabled":
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    msg,
			Suggestion: "It won't come back after a reboot; run " + c.Rerun,
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: msg}
}

func (c *ServiceCheck) systemctl(verb string) (string, error) {
	out, _, _, err := c.Client.Exec(util.ShellJoin("systemctl", verb, unit.Name))
	if err != nil {
		return "", err
	}
	state := util.FirstLine(string(out))
	if state == "" {
		state = "unknown"
	}
	return state, nil
}

// TunnelCheck reads the service log for the tunnel URL or a pending
// device code.
type TunnelCheck struct {
	Client Executor
	Tunnel string
	Lines  int
}

func (c *TunnelCheck) Name() string { return "tunnel" }

func (c *TunnelCheck) Run() CheckResult {
	src := logpoll.JournalSource{Client: c.Client, Unit: unit.Name, Lines: c.Lines}
	window, err := src.Fetch(context.Background())
	if err != nil {
		return sessionLost(c.Name(), err)
	}

	strict := logpoll.ConnectionMatcher{Tunnel: c.Tunnel, Strict: true}
	if m, ok := strict.Match(window); ok {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: m.Connection.URL}
	}
	if m, ok := (logpoll.DeviceCodeMatcher{}).Match(window); ok {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "waiting for sign-in",
			Suggestion: fmt.Sprintf("Enter %s at %s", m.Auth.DeviceCode, m.Auth.LoginURL),
		}
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "no tunnel URL in the recent log",
		Suggestion: "journalctl -u " + unit.Name,
	}
}
