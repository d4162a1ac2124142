package exec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/util"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// Mode is how a Runner obtains root on the remote host.
type Mode int

const (
	// ModeRoot means the login user is already root.
	ModeRoot Mode = iota
	// ModeSudo means the login user has passwordless sudo.
	ModeSudo
	// ModeSudoPassword means sudo needs a password, sent on stdin.
	ModeSudoPassword
)

func (m Mode) String() string {
	switch m {
	case ModeRoot:
		return "root"
	case ModeSudo:
		return "sudo"
	case ModeSudoPassword:
		return "sudo (password)"
	}
	return "unknown"
}

// PasswordPrompt asks the operator for the sudo password of user on host.
type PasswordPrompt func(user, host string) (string, error)

// Runner executes commands as root over an existing SSH session.
type Runner struct {
	client   sshutil.SSHClient
	mode     Mode
	password string
	log      logger.Logger
}

// NewRunner detects how the session's user can reach root. prompt is only
// called when sudo demands a password; a nil prompt makes that case fail.
func NewRunner(client sshutil.SSHClient, prompt PasswordPrompt, log logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.Noop()
	}
	r := &Runner{client: client, log: log}

	if client.GetUser() == "root" {
		r.mode = ModeRoot
		return r, nil
	}

	stdout, _, code, err := client.Exec("id -u")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't run commands on %s", client.GetHost()),
			"Check that the SSH connection is still up")
	}
	if code == 0 && strings.TrimSpace(string(stdout)) == "0" {
		r.mode = ModeRoot
		return r, nil
	}

	if _, _, code, err := client.Exec("sudo -n true"); err == nil && code == 0 {
		r.mode = ModeSudo
		log.Debug("%s has passwordless sudo on %s", client.GetUser(), client.GetHost())
		return r, nil
	}

	if prompt == nil {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("%s can't become root on %s without a password", client.GetUser(), client.GetHost()),
			"Run tunnelup from an interactive terminal, or grant the user passwordless sudo")
	}

	password, err := prompt(client.GetUser(), client.GetHost())
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Sudo password prompt was cancelled",
			"Re-run and enter the password, or use --admin-user root")
	}

	var stderr bytes.Buffer
	code, err = client.ExecInteractive("sudo -S -p '' true", strings.NewReader(password+"\n"), io.Discard, &stderr)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't run sudo on %s", client.GetHost()),
			"Check that the SSH connection is still up")
	}
	if code != 0 {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("sudo rejected the password for %s", client.GetUser()),
			util.FirstLine(stderr.String()))
	}

	r.mode = ModeSudoPassword
	r.password = password
	return r, nil
}

// Mode returns how this runner reaches root.
func (r *Runner) Mode() Mode {
	return r.mode
}

// Client returns the underlying session.
func (r *Runner) Client() sshutil.SSHClient {
	return r.client
}

// Wrap returns cmd as it will be sent to the remote shell.
func (r *Runner) Wrap(cmd string) string {
	switch r.mode {
	case ModeSudo:
		return "sudo -n sh -c " + util.ShellQuote(cmd)
	case ModeSudoPassword:
		return "sudo -S -p '' sh -c " + util.ShellQuote(cmd)
	}
	return cmd
}

// Exec runs cmd as root and captures its output.
func (r *Runner) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	wrapped := r.Wrap(cmd)
	r.log.Debug("exec (%s): %s", r.mode, cmd)

	if r.mode != ModeSudoPassword {
		return r.client.Exec(wrapped)
	}

	var out, errOut bytes.Buffer
	code, err := r.client.ExecInteractive(wrapped, strings.NewReader(r.password+"\n"), &out, &errOut)
	return out.Bytes(), errOut.Bytes(), code, err
}

// ExecTTY runs cmd as root with a terminal attached, for commands that
// prompt the operator directly (passwd). sudo asks for its own password on
// the terminal if it needs one.
func (r *Runner) ExecTTY(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.mode != ModeRoot {
		cmd = "sudo " + cmd
	}
	r.log.Debug("exec tty (%s): %s", r.mode, cmd)
	return r.client.ExecTTY(cmd, stdin, stdout, stderr)
}

// WriteFile writes content to path as root with the given permissions.
// The content lands in a uniquely named temp file first so partial writes
// never replace the destination.
func (r *Runner) WriteFile(path, content string, mode os.FileMode) error {
	tmp := "/tmp/tunnelup-" + uuid.NewString()
	write, err := util.WriteHeredoc(tmp, content)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Can't write %s", path), "")
	}

	_, stderr, code, err := r.client.Exec(write)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't write %s on %s", tmp, r.client.GetHost()),
			"Check that the SSH connection is still up")
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Couldn't write %s (exit %d)", tmp, code),
			util.FirstLine(string(stderr)))
	}

	install := fmt.Sprintf("install -m %04o %s %s && rm -f %s",
		mode.Perm(), util.ShellQuote(tmp), util.ShellQuote(path), util.ShellQuote(tmp))
	_, stderr, code, err = r.Exec(install)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't install %s on %s", path, r.client.GetHost()),
			"Check that the SSH connection is still up")
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Couldn't install %s (exit %d)", path, code),
			util.FirstLine(string(stderr)))
	}
	return nil
}
