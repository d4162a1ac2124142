package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// StrictHostKeyChecking turns known_hosts verification on. Off accepts any key.
var StrictHostKeyChecking = true

// AcceptNewHostKeys records the key of a host missing from known_hosts,
// like ssh -o StrictHostKeyChecking=accept-new. A changed key is always an
// error.
var AcceptNewHostKeys = true

// HostKeyMismatchError is a host whose key differs from the recorded one.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion explains how to replace the stale entry. Reinstalled hosts are
// the common case, so it assumes the new key is legitimate once checked.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	known := "unknown"
	if len(e.Want) > 0 {
		types := make([]string, 0, len(e.Want))
		for _, k := range e.Want {
			types = append(types, k.Key.Type())
		}
		known = strings.Join(types, ", ")
	}

	var b strings.Builder
	b.WriteString("The server's host key doesn't match what's in known_hosts.\n")
	fmt.Fprintf(&b, "  Known types: %s\n  Server sent: %s\n\n", known, e.ReceivedType)
	fmt.Fprintf(&b, "  If the host was reinstalled, remove the old entry:\n    ssh-keygen -R %s\n\n", host)
	fmt.Fprintf(&b, "  Then record the new keys:\n    ssh-keyscan -t rsa,ecdsa,ed25519 %s >> %s", host, e.KnownHosts)
	return b.String()
}

// hostKeyCallback picks the verification Dial uses.
func hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !StrictHostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // turned off by the caller
	}
	cb, err := createHostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// createHostKeyCallback verifies against path, creating the file when it
// doesn't exist yet.
func createHostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create known_hosts: %w", err)
	}
	_ = f.Close()

	verify, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err == nil || !stderrors.As(err, &keyErr) {
			return err
		}
		switch {
		case len(keyErr.Want) > 0:
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   path,
				Want:         keyErr.Want,
			}
		case AcceptNewHostKeys:
			return appendKnownHost(path, hostname, remote, key)
		default:
			return err
		}
	}, nil
}

var knownHostsMu sync.Mutex

// appendKnownHost adds one line for hostname, and for the remote address
// when it normalizes differently.
func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	names := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if addr := knownhosts.Normalize(remote.String()); addr != names[0] {
			names = append(names, addr)
		}
	}

	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err == nil {
		_, err = fmt.Fprintln(f, knownhosts.Line(names, key))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	return nil
}
