// Package unit renders and inspects the systemd unit that runs the tunnel.
//
// The rendered file is a fixed template with two interpolated fields, User=
// and the --name argument. Inspect matches those lines textually, so the
// template must stay byte-for-byte stable across releases.
package unit

import (
	"bytes"
	"strings"
	"text/template"
)

const (
	// Name is the systemd unit name.
	Name = "code-tunnel.service"
	// Path is where the unit file lives on the remote host.
	Path = "/etc/systemd/system/" + Name
	// BinaryPath is where the VS Code CLI is installed.
	BinaryPath = "/usr/local/bin/code"
)

// Spec holds the values interpolated into the unit file.
type Spec struct {
	User   string
	Tunnel string
	Binary string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Visual Studio Code Tunnel
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{.User}}
ExecStart={{.Binary}} tunnel --accept-server-license-terms --name {{.Tunnel}}
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`))

// Render produces the unit file content. User and Tunnel must already be
// validated; they are interpolated verbatim.
func Render(s Spec) string {
	if s.Binary == "" {
		s.Binary = BinaryPath
	}
	var buf bytes.Buffer
	// The template is static and Spec has only string fields.
	_ = unitTemplate.Execute(&buf, s)
	return buf.String()
}

// State describes an installed unit file relative to the desired identity.
type State struct {
	Present     bool
	MatchesUser bool
	MatchesName bool
}

// Inspect compares unit file content with the desired user and tunnel name.
// Empty content means the unit is absent.
func Inspect(content, user, tunnel string) State {
	if strings.TrimSpace(content) == "" {
		return State{}
	}

	s := State{Present: true}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "User="+user:
			s.MatchesUser = true
		case strings.HasPrefix(line, "ExecStart=") && strings.HasSuffix(line, " --name "+tunnel):
			s.MatchesName = true
		}
	}
	return s
}

// Drift reports why the unit must be rewritten: "absent", "user", "name",
// or "" when it already matches. The user is checked before the name.
func (s State) Drift() string {
	switch {
	case !s.Present:
		return "absent"
	case !s.MatchesUser:
		return "user"
	case !s.MatchesName:
		return "name"
	}
	return ""
}

// Current reports whether the unit matches the desired identity.
func (s State) Current() bool {
	return s.Drift() == ""
}

// Identity reads the service user and tunnel name back out of unit
// content. Either is empty when its line is missing.
func Identity(content string) (user, tunnel string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "User="):
			user = strings.TrimPrefix(line, "User=")
		case strings.HasPrefix(line, "ExecStart="):
			if i := strings.LastIndex(line, " --name "); i >= 0 {
				tunnel = line[i+len(" --name "):]
			}
		}
	}
	return user, tunnel
}
