package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/tunnelup/pkg/sshutil/testing"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withHost points dial at mock and isolates the config file.
func withHost(t *testing.T, mock *sshtesting.MockClient) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	oldDial, oldCfg, oldMachine := dial, cfgFile, machineMode
	dial = func(_ string, opts sshutil.Options) (sshutil.SSHClient, error) {
		return mock.As(opts.User), nil
	}
	cfgFile = ""
	t.Cleanup(func() {
		dial, cfgFile, machineMode = oldDial, oldCfg, oldMachine
	})
}

// installedHost has the tunnel installed, running and signed in.
func installedHost(t *testing.T) *sshtesting.MockClient {
	t.Helper()
	mock := sshtesting.NewMockClient("box1")
	mock.AddUser("vscode")
	fs := mock.GetFS()
	require.NoError(t, fs.WriteFile(unit.BinaryPath, []byte("ELF")))
	require.NoError(t, fs.Chmod(unit.BinaryPath, 0755))
	require.NoError(t, fs.WriteFile(unit.Path, []byte(unit.Render(unit.Spec{User: "vscode", Tunnel: "box1"}))))
	for _, cmd := range []string{"systemctl enable " + unit.Name, "systemctl start " + unit.Name} {
		_, _, code, err := mock.Exec(cmd)
		require.NoError(t, err)
		require.Equal(t, 0, code)
	}
	mock.AppendJournal(unit.Name, "Open this link in your browser https://vscode.dev/tunnel/box1", 0)
	return mock
}

func commandWithTarget(flags *TargetFlags, out *bytes.Buffer) *cobra.Command {
	cmd := newTargetCmd(flags)
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd
}

func TestStatusCommand_Healthy(t *testing.T) {
	withHost(t, installedHost(t))
	var out bytes.Buffer

	err := statusCommand(commandWithTarget(&TargetFlags{}, &out), "box1")

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Tunnel on box1")
	assert.Contains(t, out.String(), "https://vscode.dev/tunnel/box1")
	assert.Contains(t, out.String(), "Tunnel is healthy")
}

func TestStatusCommand_JSONAndFailure(t *testing.T) {
	withHost(t, sshtesting.NewMockClient("box1"))
	machineMode = true
	var out bytes.Buffer

	err := statusCommand(commandWithTarget(&TargetFlags{}, &out), "box1")

	require.Error(t, err)
	var shown *reportedError
	assert.ErrorAs(t, err, &shown)
	assert.True(t, errors.IsCode(err, errors.ErrServiceConfig))

	var env struct {
		Success bool         `json:"success"`
		Data    StatusOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "box1", env.Data.Host)
	assert.Len(t, env.Data.Results, 5)
	assert.False(t, env.Data.Summary.Healthy)
	assert.Positive(t, env.Data.Summary.Fail)
}

func TestLogsCommand(t *testing.T) {
	mock := installedHost(t)
	mock.AppendJournal(unit.Name, "Connected to an existing tunnel process", 0)
	withHost(t, mock)
	var out bytes.Buffer

	require.NoError(t, logsCommand(commandWithTarget(&TargetFlags{}, &out), "box1"))

	assert.Contains(t, out.String(), "https://vscode.dev/tunnel/box1")
	assert.Contains(t, out.String(), "Connected to an existing tunnel process")
}

func TestUninstallCommand(t *testing.T) {
	mock := installedHost(t)
	withHost(t, mock)
	machineMode = true
	var out bytes.Buffer

	require.NoError(t, uninstallCommand(commandWithTarget(&TargetFlags{}, &out), "box1"))

	var env struct {
		Data UninstallOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.Equal(t, []string{unit.Path}, env.Data.Removed)
	assert.False(t, mock.GetFS().Exists(unit.Path))
	assert.True(t, mock.GetFS().IsExecutable(unit.BinaryPath))
	assert.False(t, mock.UnitActive(unit.Name))
}

func TestConnectRoot_ProbeFailure(t *testing.T) {
	withHost(t, sshtesting.NewMockClient("box1"))
	dial = func(string, sshutil.Options) (sshutil.SSHClient, error) {
		return nil, assert.AnError
	}

	_, err := connectRoot(config.DefaultConfig(), "box1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
	assert.Contains(t, err.Error(), "Can't log in to box1 as root")
}

func TestExportCommand(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Run("derives the tunnel name from the host", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, exportCommand(&out, cfg, "box1.example.com", false))
		assert.True(t, strings.HasPrefix(out.String(), "#!"))
		assert.Contains(t, out.String(), "TUNNEL_NAME="+"'"+config.DefaultTunnelName("box1.example.com")+"'")
	})

	t.Run("needs a name without a host", func(t *testing.T) {
		var out bytes.Buffer
		err := exportCommand(&out, cfg, "", false)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrValidation))
		assert.Empty(t, out.String())
	})

	t.Run("generator needs no name", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, exportCommand(&out, cfg, "", true))
		assert.Contains(t, out.String(), unit.Path)
	})
}

func TestConfigSetCommand(t *testing.T) {
	withHost(t, sshtesting.NewMockClient("box1"))
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, configSetCommand(cmd, "user", "alice"))
	assert.Contains(t, out.String(), "Set user in "+cfgFile)

	data, err := os.ReadFile(cfgFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "user: alice")

	err = configSetCommand(cmd, "nope", "x")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestCompleteHosts_ListsSSHConfigAliases(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(`
Host devbox
    HostName 10.1.2.3
    User admin
Host lab-*
    User root
Host db
`), 0600))

	got, directive := completeHosts(rootCmd, nil, "d")
	assert.Equal(t, []string{"db", "devbox\tadmin@10.1.2.3"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	got, _ = completeHosts(rootCmd, []string{"devbox"}, "")
	assert.Empty(t, got, "only the first argument is a host")
}
