package unit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	got := Render(Spec{User: "vscode", Tunnel: "box1"})

	assert.Equal(t, `[Unit]
Description=Visual Studio Code Tunnel
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User=vscode
ExecStart=/usr/local/bin/code tunnel --accept-server-license-terms --name box1
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`, got)
}

func TestRender_IsDeterministic(t *testing.T) {
	s := Spec{User: "vscode", Tunnel: "box1"}
	assert.Equal(t, Render(s), Render(s))
}

func TestInspect(t *testing.T) {
	current := Render(Spec{User: "vscode", Tunnel: "box1"})

	tests := []struct {
		name    string
		content string
		user    string
		tunnel  string
		want    State
		drift   string
	}{
		{"absent", "", "vscode", "box1", State{}, "absent"},
		{"whitespace only", " \n", "vscode", "box1", State{}, "absent"},
		{"matches", current, "vscode", "box1", State{true, true, true}, ""},
		{"other user", current, "alice", "box1", State{true, false, true}, "user"},
		{"other name", current, "vscode", "box2", State{true, true, false}, "name"},
		{"both differ reports user first", current, "alice", "box2", State{true, false, false}, "user"},
		{"name is a suffix not a prefix", current, "vscode", "box", State{true, true, false}, "name"},
		{"user prefix does not match", current, "vs", "box1", State{true, false, true}, "user"},
		{"hand edited with CRLF", strings.ReplaceAll(current, "\n", "\r\n"), "vscode", "box1", State{true, true, true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Inspect(tt.content, tt.user, tt.tunnel)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.drift, got.Drift())
			assert.Equal(t, tt.drift == "", got.Current())
		})
	}
}

func TestIdentity(t *testing.T) {
	user, tunnel := Identity(Render(Spec{User: "alice", Tunnel: "lab-2"}))
	assert.Equal(t, "alice", user)
	assert.Equal(t, "lab-2", tunnel)

	user, tunnel = Identity("[Service]\nExecStart=/usr/local/bin/code tunnel\n")
	assert.Empty(t, user)
	assert.Empty(t, tunnel)
}
