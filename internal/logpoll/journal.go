package logpoll

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// Executor runs a remote command and captures its output.
type Executor interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
}

// JournalSource reads the tail of a systemd unit's journal. Only entries
// logged at or after Since are returned, so output from earlier runs of
// the service never matches.
type JournalSource struct {
	Client Executor
	Unit   string
	// Since is a remote epoch in seconds; zero reads the whole journal.
	Since int64
	// Lines caps the window size.
	Lines int
}

// Command returns the journalctl invocation.
func (j JournalSource) Command() string {
	args := []string{"journalctl", "-u", j.Unit}
	if j.Since > 0 {
		args = append(args, "--since", "@"+strconv.FormatInt(j.Since, 10))
	}
	if j.Lines > 0 {
		args = append(args, "-n", strconv.Itoa(j.Lines))
	}
	args = append(args, "-o", "cat", "--no-pager")
	return util.ShellJoin(args...)
}

// Fetch implements LogSource.
func (j JournalSource) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cmd := j.Command()
	stdout, stderr, code, err := j.Client.Exec(cmd)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSSH,
			"Lost the SSH session while reading the tunnel log",
			"Check the connection; `tunnelup logs <host>` shows the log once it is back")
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("journalctl exited with status %d", code),
			util.FirstLine(string(stderr)))
	}
	return string(stdout), nil
}

// RemoteNow returns the remote host's clock as a Unix epoch. Journal
// windows are anchored on it so local clock skew doesn't matter.
func RemoteNow(client Executor) (int64, error) {
	stdout, stderr, code, err := client.Exec("date +%s")
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrSSH,
			"Lost the SSH session while reading the remote clock", "")
	}
	if code != 0 {
		return 0, errors.New(errors.ErrExec, "Couldn't read the remote clock", util.FirstLine(string(stderr)))
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(string(stdout)), 10, 64)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Unexpected output from date: %q", strings.TrimSpace(string(stdout))), "")
	}
	return epoch, nil
}
