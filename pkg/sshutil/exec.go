package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// session describes one remote command: its streams and whether it gets a
// pseudo-terminal.
type session struct {
	cmd            string
	stdin          io.Reader
	stdout, stderr io.Writer
	tty            bool
}

// Exec runs cmd and buffers its output. exitCode is -1 when the command
// never ran; a non-zero status with a nil error is an ordinary failure.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var out, errOut bytes.Buffer
	exitCode, err = c.run(session{cmd: cmd, stdout: &out, stderr: &errOut})
	if err != nil {
		return nil, nil, exitCode, err
	}
	return out.Bytes(), errOut.Bytes(), exitCode, nil
}

func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (int, error) {
	return c.run(session{cmd: cmd, stdout: stdout, stderr: stderr})
}

// ExecInteractive attaches stdin without a terminal, so whatever it feeds
// (a sudo password) is never echoed.
func (c *Client) ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return c.run(session{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr})
}

// ExecTTY runs cmd on a remote pseudo-terminal. A local terminal on stdin
// goes raw for the duration so the remote side owns echo, as passwd needs.
func (c *Client) ExecTTY(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return c.run(session{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr, tty: true})
}

func (c *Client) run(s session) (int, error) {
	sess, err := c.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer sess.Close()

	if s.tty {
		restore, err := attachPTY(sess, s.stdin)
		if err != nil {
			return -1, err
		}
		defer restore()
	}
	sess.Stdin, sess.Stdout, sess.Stderr = s.stdin, s.stdout, s.stderr

	err = sess.Run(s.cmd)
	var exit *ssh.ExitError
	switch {
	case err == nil:
		return 0, nil
	case stderrors.As(err, &exit):
		return exit.ExitStatus(), nil
	}
	return -1, errors.WrapWithCode(err, errors.ErrExec,
		fmt.Sprintf("Failed to execute command: %s", s.cmd),
		"The session dropped before the command finished. Check the connection and run again.")
}

// attachPTY requests a PTY the size of the local terminal (80x24 when
// stdin isn't one). The returned func undoes raw mode.
func attachPTY(sess *ssh.Session, stdin io.Reader) (func(), error) {
	cols, rows := 80, 24
	restore := func() {}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		if w, h, err := term.GetSize(fd); err == nil {
			cols, rows = w, h
		}
		if old, err := term.MakeRaw(fd); err == nil {
			restore = func() { _ = term.Restore(fd, old) }
		}
	}

	termName := os.Getenv("TERM")
	if termName == "" {
		termName = "xterm-256color"
	}
	modes := ssh.TerminalModes{ssh.ECHO: 1, ssh.TTY_OP_ISPEED: 14400, ssh.TTY_OP_OSPEED: 14400}
	if err := sess.RequestPty(termName, rows, cols, modes); err != nil {
		restore()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to allocate PTY",
			"The remote host may not support pseudo-terminals.")
	}
	return restore, nil
}
