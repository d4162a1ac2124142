package converge

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/arch"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// Executor runs a command on the remote host and captures its output.
type Executor interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
}

// Observe probes the host for the state Plan needs. Only reads are issued,
// so any login user will do.
func Observe(client Executor, desired Desired) (Observed, error) {
	var obs Observed

	_, _, code, err := run(client, "id -u "+util.ShellQuote(desired.User))
	if err != nil {
		return obs, err
	}
	obs.UserExists = code == 0

	_, _, code, err = run(client, "test -x "+unit.BinaryPath)
	if err != nil {
		return obs, err
	}
	obs.Binary = BinaryState{Present: code == 0, Path: unit.BinaryPath}

	out, _, code, err := run(client, "cat "+unit.Path)
	if err != nil {
		return obs, err
	}
	content := ""
	if code == 0 {
		content = string(out)
	}
	obs.Unit = unit.Inspect(content, desired.User, desired.Tunnel.Name)

	for _, tool := range []string{"curl", "wget"} {
		_, _, code, err := run(client, "command -v "+tool)
		if err != nil {
			return obs, err
		}
		if code == 0 {
			obs.Downloader = tool
			break
		}
	}

	return obs, nil
}

// DetectTarget reads the machine architecture and maps it to a download
// target. Unsupported machines fail with ErrUnsupportedArch.
func DetectTarget(client Executor) (arch.Target, string, error) {
	out, stderr, code, err := run(client, "uname -m")
	if err != nil {
		return "", "", err
	}
	if code != 0 {
		return "", "", errors.New(errors.ErrExec,
			"Couldn't read the machine architecture",
			util.FirstLine(string(stderr)))
	}
	raw := strings.TrimSpace(string(out))
	target, err := arch.Resolve(raw)
	return target, raw, err
}

func run(client Executor, cmd string) ([]byte, []byte, int, error) {
	stdout, stderr, code, err := client.Exec(cmd)
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Lost the SSH session while running `%s`", cmd),
			"Check the connection and re-run; every step is safe to repeat")
	}
	return stdout, stderr, code, nil
}

var _ Executor = sshutil.SSHClient(nil)
