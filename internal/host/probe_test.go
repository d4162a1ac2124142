package host

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/tunnelup/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeProbeError(t *testing.T) {
	tests := []struct {
		msg  string
		want ProbeFailReason
	}{
		{"dial tcp 10.0.0.1:22: i/o timeout", ProbeFailTimeout},
		{"Connection timed out. Host might be offline", ProbeFailTimeout},
		{"dial tcp 10.0.0.1:22: connect: connection refused", ProbeFailRefused},
		{"connect: no route to host", ProbeFailUnreachable},
		{"network is unreachable", ProbeFailUnreachable},
		{"dial tcp: lookup nope: no such host", ProbeFailUnreachable},
		{"ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]", ProbeFailAuth},
		{"no supported methods remain", ProbeFailAuth},
		{"permission denied (publickey)", ProbeFailAuth},
		{"host key mismatch for box:22: server sent ssh-ed25519 key", ProbeFailHostKey},
		{"something unexpected", ProbeFailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := categorizeProbeError("box", "vscode", stderrors.New(tt.msg))
			require.NotNil(t, err)
			assert.Equal(t, tt.want, err.Reason)
		})
	}
}

func TestCategorizeProbeError_Nil(t *testing.T) {
	assert.Nil(t, categorizeProbeError("box", "vscode", nil))
}

func TestProbeError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := categorizeProbeError("box", "vscode", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ssh vscode@box: connection refused (connection refused)", err.Error())
}

func TestProbeError_Hint(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		reason ProbeFailReason
		want   string
	}{
		{ProbeFailTimeout, "firewall"},
		{ProbeFailRefused, "-p"},
		{ProbeFailUnreachable, "VPN"},
		{ProbeFailAuth, "ssh-keygen -t ed25519"},
		{ProbeFailHostKey, "ssh-keygen -R box"},
		{ProbeFailUnknown, "ssh -v vscode@box"},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			e := &ProbeError{Host: "box", User: "vscode", Reason: tt.reason}
			assert.Contains(t, e.Hint(), tt.want)
		})
	}
}

func TestProbeError_AsError(t *testing.T) {
	e := &ProbeError{Host: "box", User: "vscode", Reason: ProbeFailRefused}
	err := e.AsError()

	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
	assert.Contains(t, err.Error(), "Can't log in to box as vscode")

	var pe *ProbeError
	assert.ErrorAs(t, err, &pe)
}

func TestProbe_PassesOptions(t *testing.T) {
	var gotHost string
	var gotOpts sshutil.Options
	mock := sshtesting.NewMockClient("box")
	dial := func(host string, opts sshutil.Options) (sshutil.SSHClient, error) {
		gotHost, gotOpts = host, opts
		return mock.As(opts.User), nil
	}

	target := config.Target{Host: "box", Port: 2222, IdentityFile: "/k/id"}
	client, _, err := Probe(dial, target, "vscode", 3*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "box", gotHost)
	assert.Equal(t, sshutil.Options{User: "vscode", Port: 2222, IdentityFile: "/k/id", Timeout: 3 * time.Second}, gotOpts)
	assert.Equal(t, "vscode", client.GetUser())
}

func TestProbe_CategorizesFailure(t *testing.T) {
	dial := func(string, sshutil.Options) (sshutil.SSHClient, error) {
		return nil, stderrors.New("ssh: unable to authenticate")
	}

	client, _, err := Probe(dial, config.Target{Host: "box"}, "vscode", time.Second)
	assert.Nil(t, client)

	var pe *ProbeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ProbeFailAuth, pe.Reason)
	assert.Equal(t, "vscode", pe.User)
}
