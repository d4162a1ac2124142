package sshutil

import (
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP connect and the SSH handshake.
const DefaultTimeout = 10 * time.Second

// Client is an open SSH connection plus how it was reached.
type Client struct {
	*ssh.Client
	Host    string // host argument as given, possibly an ssh_config alias
	Address string // resolved host:port
	User    string
}

// Options override what ~/.ssh/config resolves. Zero values are ignored;
// a zero Port leaves the port to the host argument, ~/.ssh/config or 22.
type Options struct {
	User         string
	Port         int
	IdentityFile string
	Timeout      time.Duration
}

// WarningHandler receives non-fatal configuration warnings. Nil sends
// them to the standard logger.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler == nil {
		log.Printf("Warning: %s", message)
		return
	}
	WarningHandler(message)
}

// Dial connects and authenticates to host, which may be an ssh_config
// alias, a hostname or address, and may carry user@ and :port. It uses
// keys only and never prompts, so a failure means batch-mode login is not
// possible for that user.
func Dial(host string, opts Options) (*Client, error) {
	s := settingsFor(host, opts)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg, err := clientConfig(s, timeout)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	addr := s.address()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, addr),
			suggestionForDialError(err))
	}

	// DialTimeout stops at the TCP connect; the deadline covers the handshake.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, handshakeError(err, host, s)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{Client: ssh.NewClient(sc, chans, reqs), Host: host, Address: addr, User: s.user}, nil
}

func clientConfig(s *sshSettings, timeout time.Duration) (*ssh.ClientConfig, error) {
	auth, err := authMethods(s)
	if err != nil {
		return nil, err
	}
	verify, err := hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{User: s.user, Auth: auth, HostKeyCallback: verify, Timeout: timeout}, nil
}

func handshakeError(err error, host string, s *sshSettings) error {
	var mismatch *HostKeyMismatchError
	if stderrors.As(err, &mismatch) {
		return errors.New(errors.ErrSSH, mismatch.Error(), mismatch.Suggestion())
	}
	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("SSH handshake with %s@%s didn't go through", s.user, host),
		suggestionForHandshakeError(err, s.encryptedKeys))
}

// Close is safe on a Client that never connected.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func (c *Client) GetHost() string    { return c.Host }
func (c *Client) GetAddress() string { return c.Address }
func (c *Client) GetUser() string    { return c.User }

func suggestionForDialError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is SSH running on that box? Try: ssh <host>"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods"):
		if len(encryptedKeys) > 0 {
			return addKeysSuggestion("Your key(s) are encrypted. Add them to the agent:", encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	case strings.Contains(msg, "host key"):
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}
