package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dev", "dev"},
		{"", ""},
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVersion(tt.input))
		})
	}
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "", shortCommit("none"))
	assert.Equal(t, "abc123", shortCommit("abc123"))
	assert.Equal(t, "0123456", shortCommit("0123456789abcdef"))
}

func TestVersionCommand_JSON(t *testing.T) {
	oldMachine, oldShort := machineMode, versionShort
	t.Cleanup(func() { machineMode, versionShort = oldMachine, oldShort })
	SetVersionInfo("1.4.0", "0123456789abcdef", "2026-10-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	machineMode, versionShort = true, false
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	require.NoError(t, versionCommand(versionCmd))

	var env struct {
		Success bool          `json:"success"`
		Data    VersionOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "v1.4.0", env.Data.Version)
	assert.Equal(t, "0123456789abcdef", env.Data.Commit)

	out.Reset()
	machineMode, versionShort = false, true
	require.NoError(t, versionCommand(versionCmd))
	assert.Equal(t, "1.4.0\n", out.String())
}
