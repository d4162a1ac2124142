package sshutil

import "io"

// SSHClient is a login session on the remote host. *Client and the mock
// host in sshutil/testing both implement it.
//
// Implementations must allow concurrent calls: the device-code reader polls
// the journal on its own session while provisioning continues.
type SSHClient interface {
	// Exec buffers the command's output. exitCode is -1 when the command
	// could not be started; a non-zero status alone is not an error.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream copies output to the writers as it arrives.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// ExecInteractive feeds stdin without allocating a terminal.
	ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)

	// ExecTTY allocates a pseudo-terminal for commands that insist on one.
	ExecTTY(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)

	Close() error

	// GetHost is the host argument the session was opened with.
	GetHost() string
	// GetAddress is the resolved host:port.
	GetAddress() string
	// GetUser is the login user.
	GetUser() string
}
