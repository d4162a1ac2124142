package logpoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceCodeMatcher(t *testing.T) {
	tests := []struct {
		name     string
		window   string
		wantCode string
		wantURL  string
		wantOK   bool
	}{
		{
			name:     "github prompt",
			window:   "*\n* Visual Studio Code Server\n*\nTo grant access to the server, please log into https://github.com/login/device and use code 3F2A-91BC\n",
			wantCode: "3F2A-91BC",
			wantURL:  "https://github.com/login/device",
			wantOK:   true,
		},
		{
			name:     "microsoft prompt with trailing period",
			window:   "To sign in, use a web browser to open the page https://microsoft.com/devicelogin. Then use code ABCD-EFGH to authenticate.",
			wantCode: "ABCD-EFGH",
			wantURL:  "https://microsoft.com/devicelogin",
			wantOK:   true,
		},
		{
			name:     "newest code wins",
			window:   "log into https://github.com/login/device and use code AAAA-1111\nlog into https://github.com/login/device and use code BBBB-2222",
			wantCode: "BBBB-2222",
			wantURL:  "https://github.com/login/device",
			wantOK:   true,
		},
		{
			name:   "code-shaped text without the phrase",
			window: "build ABCD-1234 finished",
		},
		{
			name:   "lowercase code rejected",
			window: "please use code abcd-1234",
		},
		{
			name:   "no entries",
			window: "-- No entries --",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := DeviceCodeMatcher{}.Match(tt.window)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.NotNil(t, match.Auth)
			assert.Nil(t, match.Connection)
			assert.Equal(t, tt.wantCode, match.Auth.DeviceCode)
			assert.Equal(t, tt.wantURL, match.Auth.LoginURL)
		})
	}
}

func TestConnectionMatcher(t *testing.T) {
	tests := []struct {
		name          string
		matcher       ConnectionMatcher
		window        string
		wantOK        bool
		wantURL       string
		wantHeuristic bool
		wantMarkers   []string
	}{
		{
			name:    "authoritative url",
			matcher: ConnectionMatcher{Tunnel: "box1"},
			window:  "Open this link in your browser https://vscode.dev/tunnel/box1/home/vscode",
			wantOK:  true,
			wantURL: "https://vscode.dev/tunnel/box1/home/vscode",
		},
		{
			name:        "url with markers keeps them",
			matcher:     ConnectionMatcher{Tunnel: "box1"},
			window:      "Connected to an existing tunnel process\nhttps://vscode.dev/tunnel/box1",
			wantOK:      true,
			wantURL:     "https://vscode.dev/tunnel/box1",
			wantMarkers: []string{"connected"},
		},
		{
			name:    "url for another tunnel is ignored",
			matcher: ConnectionMatcher{Tunnel: "box1", Strict: true},
			window:  "https://vscode.dev/tunnel/other",
		},
		{
			name:          "keywords only is heuristic",
			matcher:       ConnectionMatcher{Tunnel: "box1"},
			window:        "Server is Listening\nclient ready",
			wantOK:        true,
			wantURL:       "https://vscode.dev/tunnel/box1",
			wantHeuristic: true,
			wantMarkers:   []string{"listening", "ready"},
		},
		{
			name:    "strict ignores keywords",
			matcher: ConnectionMatcher{Tunnel: "box1", Strict: true},
			window:  "ready",
		},
		{
			name:    "words containing markers don't count",
			matcher: ConnectionMatcher{Tunnel: "box1"},
			window:  "disconnected; already tried",
		},
		{
			name:    "any tunnel when unnamed",
			matcher: ConnectionMatcher{},
			window:  "https://vscode.dev/tunnel/whatever.",
			wantOK:  true,
			wantURL: "https://vscode.dev/tunnel/whatever",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := tt.matcher.Match(tt.window)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.NotNil(t, match.Connection)
			assert.Equal(t, tt.wantURL, match.Connection.URL)
			assert.Equal(t, tt.wantHeuristic, match.Connection.Heuristic)
			assert.Equal(t, tt.wantMarkers, match.Connection.Markers)
		})
	}
}

func TestMerged_KeepsEveryEvent(t *testing.T) {
	m := Merged(DeviceCodeMatcher{}, ConnectionMatcher{Tunnel: "box1", Strict: true})

	match, ok := m.Match("log into https://github.com/login/device and use code ABCD-1234")
	require.True(t, ok)
	require.NotNil(t, match.Auth)
	assert.Nil(t, match.Connection)

	match, ok = m.Match("https://vscode.dev/tunnel/box1")
	require.True(t, ok)
	assert.Nil(t, match.Auth)
	assert.NotNil(t, match.Connection)

	match, ok = m.Match("use code ABCD-1234\nhttps://vscode.dev/tunnel/box1")
	require.True(t, ok)
	require.NotNil(t, match.Auth, "a code logged in the same window is kept")
	assert.Equal(t, "ABCD-1234", match.Auth.DeviceCode)
	assert.NotNil(t, match.Connection)

	_, ok = m.Match("ready")
	assert.False(t, ok)
}
