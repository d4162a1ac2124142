package cli

import (
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTargetCmd(flags *TargetFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addTargetFlags(cmd, flags)
	return cmd
}

func TestApplyTargetFlags_OnlyChangedFlagsOverride(t *testing.T) {
	var flags TargetFlags
	cmd := newTargetCmd(&flags)
	require.NoError(t, cmd.ParseFlags([]string{"-u", "alice", "-p", "2222"}))

	cfg := config.DefaultConfig()
	cfg.TunnelName = "from-file"
	require.NoError(t, applyTargetFlags(cmd, flags, cfg))

	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, "from-file", cfg.TunnelName)
	assert.Equal(t, "root", cfg.AdminUser)
	assert.Equal(t, config.QualityStable, cfg.Quality)
}

func TestApplyTargetFlags_Validates(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"bad user", []string{"-u", "Bad User"}, errors.ErrValidation},
		{"bad tunnel name", []string{"-n", "has space"}, errors.ErrValidation},
		{"port out of range", []string{"-p", "70000"}, errors.ErrValidation},
		{"unknown quality", []string{"--quality", "nightly"}, errors.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flags TargetFlags
			cmd := newTargetCmd(&flags)
			require.NoError(t, cmd.ParseFlags(tt.args))

			err := applyTargetFlags(cmd, flags, config.DefaultConfig())
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestRequireHost(t *testing.T) {
	assert.NoError(t, requireHost("box1", "tunnelup <host>"))

	err := requireHost("", "tunnelup <host>")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "Usage: tunnelup <host>")
}

func TestTunnelName(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, config.DefaultTunnelName("devbox.example.com"), tunnelName(cfg, "devbox.example.com"))

	cfg.TunnelName = "lab"
	assert.Equal(t, "lab", tunnelName(cfg, "devbox.example.com"))
}

func TestRerunCommand(t *testing.T) {
	var flags TargetFlags
	cmd := newTargetCmd(&flags)
	require.NoError(t, cmd.ParseFlags([]string{"-n", "lab", "--admin-user", "ubuntu"}))

	assert.Equal(t, "tunnelup box1 -n lab --admin-user ubuntu", rerunCommand(cmd, "box1"))
	assert.Equal(t, "tunnelup box1", rerunCommand(newTargetCmd(&TargetFlags{}), "box1"))
}
