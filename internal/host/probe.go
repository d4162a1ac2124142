// Package host opens and tracks SSH sessions to the provisioning target.
package host

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/setup"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// ProbeFailReason says why a login attempt failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailAuth
	ProbeFailHostKey
)

var reasonText = map[ProbeFailReason]string{
	ProbeFailTimeout:     "connection timed out",
	ProbeFailRefused:     "connection refused",
	ProbeFailUnreachable: "host unreachable",
	ProbeFailAuth:        "authentication failed",
	ProbeFailHostKey:     "host key verification failed",
}

func (r ProbeFailReason) String() string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return "unknown error"
}

// reasonMarkers are matched in order against the lowercased dial error.
// Host key comes first because a mismatch is also reported as a handshake
// failure.
var reasonMarkers = []struct {
	reason  ProbeFailReason
	markers []string
}{
	{ProbeFailHostKey, []string{"host key"}},
	{ProbeFailTimeout, []string{"timeout", "timed out"}},
	{ProbeFailRefused, []string{"connection refused"}},
	{ProbeFailUnreachable, []string{"no route to host", "network is unreachable", "host is down", "no such host"}},
	{ProbeFailAuth, []string{"unable to authenticate", "no supported methods", "permission denied", "authentication failed"}},
}

// ProbeError is a failed login as one user.
type ProbeError struct {
	Host   string
	User   string
	Reason ProbeFailReason
	Cause  error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("ssh %s@%s: %s", e.User, e.Host, e.Reason)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *ProbeError) Unwrap() error { return e.Cause }

// Hint is what the operator should try next.
func (e *ProbeError) Hint() string {
	switch e.Reason {
	case ProbeFailTimeout:
		return "The host didn't answer in time. Check that it is up and that a firewall isn't dropping port 22"
	case ProbeFailRefused:
		return "Nothing is listening on the SSH port. Check sshd is running, or pass the right port with -p"
	case ProbeFailUnreachable:
		return "No route to the host. Check your network, VPN, or the address"
	case ProbeFailAuth:
		return setup.KeyHint(setup.FindLocalKeys(), e.User, e.Host)
	case ProbeFailHostKey:
		return fmt.Sprintf("The host key changed. If the host was reinstalled run `ssh-keygen -R %s` and connect once with ssh to accept the new key", e.Host)
	}
	return fmt.Sprintf("Try connecting by hand to see the full error: ssh -v %s@%s", e.User, e.Host)
}

// AsError is the CONNECTIVITY failure reported when no fallback remains.
func (e *ProbeError) AsError() error {
	return errors.WrapWithCode(e, errors.ErrConnectivity,
		fmt.Sprintf("Can't log in to %s as %s: %s", e.Host, e.User, e.Reason),
		e.Hint())
}

// Dialer opens an authenticated session. Tests substitute a mock host.
type Dialer func(host string, opts sshutil.Options) (sshutil.SSHClient, error)

// DialSSH dials over the network with sshutil.
func DialSSH(host string, opts sshutil.Options) (sshutil.SSHClient, error) {
	c, err := sshutil.Dial(host, opts)
	if err != nil {
		// A typed nil would make the interface non-nil.
		return nil, err
	}
	return c, nil
}

// Probe logs in to target as user within timeout and returns the session
// for reuse, along with how long the login took. Dialing is key-only, so a
// missing key fails fast instead of waiting at a password prompt.
func Probe(dial Dialer, target config.Target, user string, timeout time.Duration) (sshutil.SSHClient, time.Duration, error) {
	start := time.Now()
	client, err := dial(target.Host, sshutil.Options{
		User:         user,
		Port:         target.Port,
		IdentityFile: target.IdentityFile,
		Timeout:      timeout,
	})
	if err != nil {
		return nil, 0, categorizeProbeError(target.Host, user, err)
	}
	return client, time.Since(start), nil
}

func categorizeProbeError(host, user string, err error) *ProbeError {
	if err == nil {
		return nil
	}
	pe := &ProbeError{Host: host, User: user, Cause: err}
	text := strings.ToLower(err.Error())
	for _, rm := range reasonMarkers {
		for _, m := range rm.markers {
			if strings.Contains(text, m) {
				pe.Reason = rm.reason
				return pe
			}
		}
	}
	return pe
}
