package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConfigHostsFile(t *testing.T) {
	path := writeConfig(t, `
Host devbox
    HostName 192.168.1.100
    User admin
    Port 2022

Host gpu-box gpu
    HostName gpu.example.com

Host *
    ServerAliveInterval 60

Host work-*
    User workuser
`)

	hosts, err := ConfigHostsFile(path)
	require.NoError(t, err)

	var aliases []string
	for _, h := range hosts {
		aliases = append(aliases, h.Alias)
	}
	assert.Equal(t, []string{"devbox", "gpu", "gpu-box"}, aliases)

	assert.Equal(t, "192.168.1.100", hosts[0].Hostname)
	assert.Equal(t, "admin", hosts[0].User)
	assert.Equal(t, "2022", hosts[0].Port)
}

func TestConfigHostsFile_Missing(t *testing.T) {
	hosts, err := ConfigHostsFile(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestConfigHost_Description(t *testing.T) {
	tests := []struct {
		name string
		host ConfigHost
		want string
	}{
		{"user and host", ConfigHost{Alias: "a", Hostname: "10.0.0.1", User: "root"}, "root@10.0.0.1"},
		{"host only", ConfigHost{Alias: "a", Hostname: "10.0.0.1"}, "10.0.0.1"},
		{"custom port", ConfigHost{Alias: "a", Hostname: "h", Port: "2200"}, "h, port 2200"},
		{"alias is hostname", ConfigHost{Alias: "h", Hostname: "h"}, ""},
		{"bare", ConfigHost{Alias: "a"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.host.Description())
		})
	}
}

func TestCompletionCandidates(t *testing.T) {
	hosts := []ConfigHost{
		{Alias: "devbox", Hostname: "10.0.0.1", User: "root"},
		{Alias: "desk"},
		{Alias: "gpu"},
	}

	assert.Equal(t, []string{"devbox\troot@10.0.0.1", "desk"}, CompletionCandidates(hosts, "de"))
	assert.Len(t, CompletionCandidates(hosts, ""), 3)
	assert.Empty(t, CompletionCandidates(hosts, "zz"))
}
