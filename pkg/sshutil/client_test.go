package sshutil

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// skipIfNoSSH skips the test unless TUNNELUP_TEST_SSH_HOST is set.
func skipIfNoSSH(t *testing.T) string {
	t.Helper()
	if os.Getenv("TUNNELUP_TEST_SKIP_SSH") == "1" {
		t.Skip("Skipping SSH test: TUNNELUP_TEST_SKIP_SSH=1")
	}
	host := os.Getenv("TUNNELUP_TEST_SSH_HOST")
	if host == "" {
		t.Skip("Skipping SSH test: TUNNELUP_TEST_SSH_HOST not set")
	}
	return host
}

func TestDial_LiveHost(t *testing.T) {
	host := skipIfNoSSH(t)

	client, err := Dial(host, Options{Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, host, client.GetHost())
	assert.NotEmpty(t, client.GetAddress())
	assert.NotEmpty(t, client.GetUser())

	stdout, _, exitCode, err := client.Exec("echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, exitCode)
	assert.Contains(t, string(stdout), "out")

	var in bytes.Buffer
	in.WriteString("piped\n")
	var out bytes.Buffer
	exitCode, err = client.ExecInteractive("cat", &in, &out, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "piped\n", out.String())
}

func TestDial_UnreachableHost(t *testing.T) {
	skipIfNoSSH(t)

	// TEST-NET-1 is never routed.
	_, err := Dial("192.0.2.1", Options{Timeout: time.Second})
	require.Error(t, err)
}

func TestResolveSSHSettings_ParsesHostString(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USER", "alice")

	tests := []struct {
		input    string
		hostname string
		port     string
		user     string
	}{
		{"box.example.com", "box.example.com", "22", "alice"},
		{"root@10.0.0.5", "10.0.0.5", "22", "root"},
		{"10.0.0.5:2222", "10.0.0.5", "2222", "alice"},
		{"vscode@10.0.0.5:2200", "10.0.0.5", "2200", "vscode"},
		{"fe80::1", "fe80::1", "22", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := resolveSSHSettings(tt.input)
			assert.Equal(t, tt.hostname, s.hostname)
			assert.Equal(t, tt.port, s.port)
			assert.Equal(t, tt.user, s.user)
		})
	}
}

func TestResolveSSHSettings_UsesSSHConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(`
Host devbox
    HostName 10.1.2.3
    User admin
    Port 2022
    IdentityFile ~/.ssh/id_devbox
`), 0600))

	s := resolveSSHSettings("devbox")
	assert.Equal(t, "10.1.2.3", s.hostname)
	assert.Equal(t, "2022", s.port)
	assert.Equal(t, "admin", s.user)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_devbox"), s.identityFile)

	// user@alias keeps the explicit user.
	s = resolveSSHSettings("root@devbox")
	assert.Equal(t, "root", s.user)
	assert.Equal(t, "10.1.2.3", s.hostname)
}

func TestSettingsApply_OptionsOverrideConfig(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	s := &sshSettings{hostname: "box", port: "2022", user: "admin", identityFile: "/a"}
	s.apply(Options{User: "vscode", Port: 2200, IdentityFile: "~/.ssh/id_tunnel"})

	assert.Equal(t, "vscode", s.user)
	assert.Equal(t, "2200", s.port)
	assert.Equal(t, "/home/alice/.ssh/id_tunnel", s.identityFile)
	assert.Equal(t, "box:2200", s.address())

	untouched := &sshSettings{hostname: "box", port: "22", user: "root"}
	untouched.apply(Options{})
	assert.Equal(t, "root", untouched.user)
	assert.Equal(t, "22", untouched.port)
}

func TestSettingsFor_PortFallsThroughWhenUnset(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(`
Host devbox
    HostName 10.0.0.5
    Port 2222
`), 0600))

	tests := []struct {
		host string
		opts Options
		want string
	}{
		{"devbox", Options{User: "vscode"}, "10.0.0.5:2222"},
		{"other:2200", Options{User: "vscode"}, "other:2200"},
		{"other", Options{User: "vscode"}, "other:22"},
		{"devbox", Options{User: "vscode", Port: 2022}, "10.0.0.5:2022"},
		{"other:2200", Options{Port: 2022}, "other:2022"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, settingsFor(tt.host, tt.opts).address())
		})
	}
}

func TestAddress_IPv6(t *testing.T) {
	s := &sshSettings{hostname: "2001:db8::1", port: "22"}
	assert.Equal(t, "[2001:db8::1]:22", s.address())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	assert.Equal(t, "/home/alice/.ssh/id_rsa", expandPath("~/.ssh/id_rsa"))
	assert.Equal(t, "/etc/ssh/key", expandPath("/etc/ssh/key"))
	assert.Equal(t, "relative/key", expandPath("relative/key"))
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"dial tcp 10.0.0.1:22: connect: connection refused", "Is SSH running"},
		{"dial tcp 10.0.0.1:22: connect: no route to host", "Can't route"},
		{"dial tcp: network is unreachable", "Can't route"},
		{"dial tcp 10.0.0.1:22: i/o timeout", "timed out"},
		{"something else", "ping"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Contains(t, suggestionForDialError(stderrors.New(tt.err)), tt.want)
		})
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	authErr := stderrors.New("ssh: unable to authenticate, attempted methods [none publickey]")

	assert.Contains(t, suggestionForHandshakeError(authErr, nil), "ssh-add -l")
	assert.Contains(t, suggestionForHandshakeError(authErr, []string{"/k/id_ed25519"}), "/k/id_ed25519")
	assert.Contains(t, suggestionForHandshakeError(stderrors.New("ssh: host key mismatch"), nil), "Host key")
	assert.Contains(t, suggestionForHandshakeError(stderrors.New("EOF"), nil), "ssh <host>")
}

func newTestKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestHostKeyCallback_AcceptsNewThenRejectsChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 22}
	first := newTestKey(t)

	cb, err := createHostKeyCallback(path)
	require.NoError(t, err)
	require.NoError(t, cb("10.0.0.5:22", addr, first), "unknown host is recorded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.5")

	// A fresh callback reads the recorded key.
	cb, err = createHostKeyCallback(path)
	require.NoError(t, err)
	require.NoError(t, cb("10.0.0.5:22", addr, first))

	err = cb("10.0.0.5:22", addr, newTestKey(t))
	var mismatch *HostKeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "ssh-ed25519", mismatch.ReceivedType)

	suggestion := mismatch.Suggestion()
	assert.Contains(t, suggestion, "ssh-keygen -R 10.0.0.5")
	assert.Contains(t, suggestion, "ssh-keyscan")
	assert.False(t, strings.Contains(suggestion, "10.0.0.5:22"), "port is stripped from the hint")
}

func TestHostKeyCallback_RejectsUnknownWhenAcceptNewDisabled(t *testing.T) {
	old := AcceptNewHostKeys
	AcceptNewHostKeys = false
	defer func() { AcceptNewHostKeys = old }()

	cb, err := createHostKeyCallback(filepath.Join(t.TempDir(), "known_hosts"))
	require.NoError(t, err)

	err = cb("10.0.0.9:22", &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 22}, newTestKey(t))
	require.Error(t, err)
	var mismatch *HostKeyMismatchError
	assert.False(t, stderrors.As(err, &mismatch))
}

func TestPreprocessSSHConfig_StopsAtMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("Host a\n  HostName 1.1.1.1\nMatch host b\n  User x\nHost c\n"), 0600))

	content, line, err := preprocessSSHConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.NotContains(t, string(content), "Host c")
}

func TestEncryptedKeyError(t *testing.T) {
	err := &EncryptedKeyError{Path: "/home/alice/.ssh/id_rsa"}
	assert.Contains(t, err.Error(), "/home/alice/.ssh/id_rsa")
	assert.Contains(t, err.Error(), "encrypted")
}
