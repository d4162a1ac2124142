package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// EncryptedKeyError means a key file exists but needs a passphrase, which
// Dial never asks for.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// authMethods collects the ways to log in, in the order ssh tries them: the
// configured identity, then the agent, then the usual key files.
// Encrypted key files are noted on s for the error hint.
func authMethods(s *sshSettings) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	tried := make(map[string]bool)

	addKey := func(path string) {
		if path == "" || tried[path] {
			return
		}
		tried[path] = true
		m, err := keyFileAuth(path)
		var enc *EncryptedKeyError
		switch {
		case err == nil:
			methods = append(methods, m)
		case stderrors.As(err, &enc):
			s.encryptedKeys = append(s.encryptedKeys, path)
		}
	}

	addKey(s.identityFile)
	if m := sshAgent.auth(); m != nil {
		methods = append(methods, m)
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		addKey(filepath.Join(homeDir(), ".ssh", name))
	}

	if len(methods) > 0 {
		return methods, nil
	}
	if len(s.encryptedKeys) > 0 {
		return nil, errors.New(errors.ErrSSH,
			"Found SSH key(s) but they're encrypted: "+strings.Join(s.encryptedKeys, ", "),
			addKeysSuggestion("Add your key(s) to the agent:", s.encryptedKeys))
	}
	return nil, errors.New(errors.ErrSSH, "No SSH auth methods available",
		"Check your keys are loaded: ssh-add -l")
}

// keyFileAuth loads an unencrypted private key.
func keyFileAuth(path string) (ssh.AuthMethod, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return ssh.PublicKeys(signer), nil
	}
	var missing *ssh.PassphraseMissingError
	if stderrors.As(err, &missing) || bytes.Contains(pem, []byte("ENCRYPTED")) {
		return nil, &EncryptedKeyError{Path: path}
	}
	return nil, err
}

// agentConn is the process-wide connection to $SSH_AUTH_SOCK, opened on
// first use and shared by every Dial.
type agentConn struct {
	once   sync.Once
	conn   net.Conn
	client agent.ExtendedAgent
}

var sshAgent agentConn

// auth returns nil when there is no agent or it holds no keys. An empty
// agent ahead of the key files makes the server count a failed attempt.
func (a *agentConn) auth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	a.once.Do(func() {
		if conn, err := net.Dial("unix", socket); err == nil {
			a.conn, a.client = conn, agent.NewClient(conn)
		}
	})
	if a.client == nil {
		return nil
	}
	if signers, err := a.client.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(a.client.Signers)
}

// CloseAgent drops the shared agent connection, if any.
func CloseAgent() {
	if sshAgent.conn != nil {
		_ = sshAgent.conn.Close()
	}
}

func addKeysSuggestion(header string, keys []string) string {
	add := "ssh-add"
	if runtime.GOOS == "darwin" {
		add = "ssh-add --apple-use-keychain"
	}
	lines := []string{header}
	for _, k := range keys {
		lines = append(lines, "  "+add+" "+k)
	}
	lines = append(lines, "", "Not sure which key? Check with: ssh -v <host>")
	return strings.Join(lines, "\n")
}
