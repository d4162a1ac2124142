// Package export renders a standalone shell script that provisions the
// tunnel when run as root on the host itself, for machines tunnelup can't
// reach over SSH. The script follows the same steps as the SSH workflow and
// writes the same unit file, byte for byte.
package export

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/arch"
	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// Values are baked into the script.
type Values struct {
	User    string
	Tunnel  string
	Quality string

	DeviceCodeBudget time.Duration
	ConnectionBudget time.Duration
	PollInterval     time.Duration
	JournalLines     int
}

// ValuesFromConfig takes the script values from the effective config.
func ValuesFromConfig(cfg *config.Config) Values {
	return Values{
		User:             cfg.User,
		Tunnel:           cfg.TunnelName,
		Quality:          cfg.Quality,
		DeviceCodeBudget: cfg.Timeouts.DeviceCode,
		ConnectionBudget: cfg.Timeouts.Connection,
		PollInterval:     cfg.Timeouts.PollInterval,
		JournalLines:     cfg.Journal.Lines,
	}
}

type archCase struct {
	Raw string
	URL string
}

type scriptData struct {
	Generator bool
	User      string
	Tunnel    string
	Binary    string
	UnitName  string
	UnitPath  string
	Unit      string
	Arches    []archCase
	Lines     int
	Interval  int
	CodeTries int
	ConnTries int
	CodeWait  string
	ConnWait  string
}

// Shell variables the script interpolates into the unit template.
const (
	userVar   = "${TUNNEL_USER}"
	tunnelVar = "${TUNNEL_NAME}"
)

var scriptTemplate = template.Must(template.New("script").Funcs(template.FuncMap{
	"quote": util.ShellQuote,
}).Parse(`#!/bin/sh
# Installs the VS Code tunnel as a systemd service. Run as root.
{{- if .Generator}}
# Usage: sh tunnelup.sh [user] [tunnel-name]
# Both can also come from TUNNEL_USER and TUNNEL_NAME.
{{- end}}
set -eu

{{if .Generator -}}
TUNNEL_USER="${1:-${TUNNEL_USER:-{{.User}}}}"
TUNNEL_NAME="${2:-${TUNNEL_NAME:-$(hostname -s)}}"
{{- else -}}
TUNNEL_USER={{quote .User}}
TUNNEL_NAME={{quote .Tunnel}}
{{- end}}
BIN={{.Binary}}
UNIT={{.UnitPath}}

fail() {
	echo "✗ $*" >&2
	exit 1
}

[ "$(id -u)" -eq 0 ] || fail "Run this script as root (sudo sh $0)"

printf '%s\n' "$TUNNEL_USER" | grep -Eq '^[a-z][a-z0-9_-]{0,31}$' ||
	fail "Username '$TUNNEL_USER' isn't a valid Linux user name"
printf '%s\n' "$TUNNEL_NAME" | grep -Eq '^[A-Za-z0-9_-]{1,64}$' ||
	fail "Tunnel name '$TUNNEL_NAME' is invalid"

MACHINE=$(uname -m)
case "$MACHINE" in
{{- range .Arches}}
{{.Raw}}) URL={{quote .URL}} ;;
{{- end}}
*) fail "Unsupported architecture: $MACHINE" ;;
esac

if ! id -u "$TUNNEL_USER" >/dev/null 2>&1; then
	echo "Creating user $TUNNEL_USER"
	useradd -m -s /bin/bash "$TUNNEL_USER" || fail "Couldn't create user $TUNNEL_USER"
	usermod -aG sudo "$TUNNEL_USER" 2>/dev/null ||
		usermod -aG wheel "$TUNNEL_USER" 2>/dev/null ||
		echo "! Couldn't add $TUNNEL_USER to sudo or wheel" >&2
fi

if [ ! -x "$BIN" ] || [ "${FORCE:-0}" = 1 ]; then
	echo "Installing the VS Code CLI"
	ARCHIVE=$(mktemp /tmp/tunnelup-XXXXXX)
	if command -v curl >/dev/null 2>&1; then
		curl -fsSL -o "$ARCHIVE" "$URL" || fail "Download failed: $URL"
	elif command -v wget >/dev/null 2>&1; then
		wget -q -O "$ARCHIVE" "$URL" || fail "Download failed: $URL"
	else
		fail "Neither curl nor wget is installed"
	fi
	tar -xzf "$ARCHIVE" -C "$(dirname "$BIN")" code || fail "Couldn't extract $ARCHIVE"
	chmod 0755 "$BIN"
	rm -f "$ARCHIVE"
fi

UNIT_CONTENT=$(cat <<EOF
{{.Unit}}EOF
)
if [ ! -f "$UNIT" ] || [ "$(cat "$UNIT")" != "$UNIT_CONTENT" ]; then
	echo "Writing $UNIT"
	printf '%s\n' "$UNIT_CONTENT" >"$UNIT"
	systemctl daemon-reload
	systemctl enable {{.UnitName}}
fi

START=$(date +%s)
systemctl stop {{.UnitName}} 2>/dev/null || true
systemctl start {{.UnitName}}

LOG=
# poll PATTERN TRIES: re-read the journal until PATTERN shows up.
poll() {
	i=0
	while [ "$i" -lt "$2" ]; do
		LOG=$(journalctl -u {{.UnitName}} --since "@$START" -n {{.Lines}} -o cat --no-pager 2>/dev/null || true)
		if printf '%s\n' "$LOG" | grep -Eq "$1"; then
			return 0
		fi
		i=$((i + 1))
		if [ "$i" -lt "$2" ]; then
			sleep {{.Interval}}
		fi
	done
	return 1
}

TUNNEL_URL="https://vscode.dev/tunnel/$TUNNEL_NAME"

echo "Waiting for the device code"
if ! poll "use code [A-Z0-9]{4}-[A-Z0-9]{4}|https://vscode\.dev/tunnel/$TUNNEL_NAME" {{.CodeTries}}; then
	if ! ip -4 route show default 2>/dev/null | grep -q .; then
		echo "  The host has no IPv4 default route; sign-in needs IPv4 egress to github.com" >&2
	fi
	fail "The tunnel didn't print a device code within {{.CodeWait}} (journalctl -u {{.UnitName}})"
fi

if ! printf '%s\n' "$LOG" | grep -q "https://vscode\.dev/tunnel/$TUNNEL_NAME"; then
	printf '%s\n' "$LOG" | grep "use code" | tail -n 1
	echo "Waiting for sign-in"
	poll "https://vscode\.dev/tunnel/$TUNNEL_NAME|[Cc]onnected|[Ll]istening|[Rr]eady" {{.ConnTries}} ||
		fail "Sign-in wasn't completed within {{.ConnWait}}"
fi

echo "✓ $TUNNEL_URL"
`))

// Script renders the script with v baked in.
func Script(v Values) (string, error) {
	if err := config.ValidateUser(v.User); err != nil {
		return "", err
	}
	if err := config.ValidateTunnelName(v.Tunnel); err != nil {
		return "", err
	}
	return render(v, false)
}

// Generator renders the script with the user and tunnel name read from
// $1/$2 or the environment at run time. v.User is the fallback user; the
// tunnel name falls back to the host's short name.
func Generator(v Values) (string, error) {
	if err := config.ValidateUser(v.User); err != nil {
		return "", err
	}
	return render(v, true)
}

func render(v Values, generator bool) (string, error) {
	d := config.DefaultConfig()
	if v.Quality == "" {
		v.Quality = d.Quality
	}
	if v.Quality != config.QualityStable && v.Quality != config.QualityInsider {
		return "", errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown quality '%s'", v.Quality),
			"Use 'stable' or 'insider'")
	}
	if v.DeviceCodeBudget <= 0 {
		v.DeviceCodeBudget = d.Timeouts.DeviceCode
	}
	if v.ConnectionBudget <= 0 {
		v.ConnectionBudget = d.Timeouts.Connection
	}
	if v.PollInterval < time.Second {
		v.PollInterval = d.Timeouts.PollInterval
	}
	if v.JournalLines <= 0 {
		v.JournalLines = d.Journal.Lines
	}

	data := scriptData{
		Generator: generator,
		User:      v.User,
		Tunnel:    v.Tunnel,
		Binary:    unit.BinaryPath,
		UnitName:  unit.Name,
		UnitPath:  unit.Path,
		Unit:      unit.Render(unit.Spec{User: userVar, Tunnel: tunnelVar}),
		Lines:     v.JournalLines,
		Interval:  int(v.PollInterval / time.Second),
		CodeTries: logpoll.Attempts(v.DeviceCodeBudget, v.PollInterval),
		ConnTries: logpoll.Attempts(v.ConnectionBudget, v.PollInterval),
		CodeWait:  v.DeviceCodeBudget.String(),
		ConnWait:  v.ConnectionBudget.String(),
	}
	for _, raw := range arch.Supported() {
		t, err := arch.Resolve(raw)
		if err != nil {
			return "", err
		}
		data.Arches = append(data.Arches, archCase{Raw: raw, URL: t.URL(v.Quality)})
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec, "Couldn't render the install script", "")
	}
	return buf.String(), nil
}
