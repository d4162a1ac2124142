package converge

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// Privileged runs commands as root. *exec.Runner implements it.
type Privileged interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
	WriteFile(path, content string, mode os.FileMode) error
}

// UserCreator provisions the service user.
type UserCreator interface {
	EnsureUser(ctx context.Context, name string) error
}

// Applier executes plans against one host.
type Applier struct {
	Root  Privileged
	Users UserCreator
	Log   logger.Logger

	// RunID names temp files; a fresh UUID is used when empty.
	RunID string

	// OnAction, if set, is called before each action runs.
	OnAction func(Action)
}

// Apply runs plan in order and stops at the first failure. StopIfRunning
// failures are ignored since the unit may not be loaded yet.
func (a *Applier) Apply(ctx context.Context, plan []Action, desired Desired) error {
	if a.Log == nil {
		a.Log = logger.Noop()
	}
	if a.RunID == "" {
		a.RunID = uuid.NewString()
	}

	for _, action := range plan {
		if err := ctx.Err(); err != nil {
			return errors.WrapWithCode(err, errors.ErrExec,
				"Interrupted before "+action.Kind.String(),
				"Re-run tunnelup; completed steps are skipped")
		}
		if a.OnAction != nil {
			a.OnAction(action)
		}
		a.Log.Debug("apply %s", action)

		if err := a.apply(ctx, action, desired); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) apply(ctx context.Context, action Action, desired Desired) error {
	switch action.Kind {
	case CreateUser:
		if a.Users == nil {
			return errors.New(errors.ErrUserCreation,
				fmt.Sprintf("User %s does not exist and can't be created from this session", desired.User),
				"Re-run with --admin-user pointing at an account with root access")
		}
		return a.Users.EnsureUser(ctx, desired.User)

	case DownloadAndInstallBinary:
		return a.install(action)

	case WriteUnitFile:
		content := unit.Render(unit.Spec{User: desired.User, Tunnel: desired.Tunnel.Name})
		if err := a.Root.WriteFile(unit.Path, content, 0644); err != nil {
			return errors.WrapWithCode(err, errors.ErrServiceConfig,
				"Couldn't write "+unit.Path, "")
		}
		return nil

	case DaemonReload:
		return a.systemctl(errors.ErrServiceConfig, "Couldn't reload systemd", "daemon-reload")

	case EnableUnit:
		return a.systemctl(errors.ErrServiceConfig, "Couldn't enable "+unit.Name, "enable", unit.Name)

	case StopIfRunning:
		_, stderr, code, err := a.Root.Exec("systemctl stop " + unit.Name)
		if err != nil || code != 0 {
			a.Log.Debug("stop %s ignored (exit %d): %s", unit.Name, code, util.FirstLine(string(stderr)))
		}
		return nil

	case StartUnit:
		return a.systemctl(errors.ErrServiceConfig, "Couldn't start "+unit.Name, "start", unit.Name)
	}

	return errors.New(errors.ErrExec, "Unknown action "+action.Kind.String(), "")
}

// DownloadCommand returns the shell chain that fetches the CLI archive with
// downloader, extracts the binary into place and removes the archive.
func DownloadCommand(downloader, url, archive string) (string, error) {
	var fetch string
	switch downloader {
	case "curl":
		fetch = fmt.Sprintf("curl -fsSL -o %s %s", archive, util.ShellQuote(url))
	case "wget":
		fetch = fmt.Sprintf("wget -q -O %s %s", archive, util.ShellQuote(url))
	default:
		return "", errors.New(errors.ErrNoDownloader,
			"Neither curl nor wget is installed on the remote host",
			"Install one of them (for example `apt-get install curl`) and re-run")
	}
	return fmt.Sprintf("%s && tar -xzf %s -C /usr/local/bin code && chmod 0755 %s && rm -f %s",
		fetch, archive, unit.BinaryPath, archive), nil
}

func (a *Applier) install(action Action) error {
	archive := "/tmp/tunnelup-" + a.RunID + ".tar.gz"
	cmd, err := DownloadCommand(action.Downloader, action.URL, archive)
	if err != nil {
		return err
	}

	a.Log.Info("downloading %s with %s", action.URL, action.Downloader)
	_, stderr, code, err := a.Root.Exec(cmd)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrInstall,
			"Lost the SSH session while installing the VS Code CLI",
			"Re-run tunnelup to retry the download")
	}
	if code != 0 {
		// Leave no partial archive behind.
		_, _, _, _ = a.Root.Exec("rm -f " + archive)
		return exec.CommandFailed(errors.ErrInstall,
			"Couldn't install the VS Code CLI", cmd, string(stderr), code)
	}
	return nil
}

func (a *Applier) systemctl(code, message string, args ...string) error {
	cmd := "systemctl " + util.ShellJoin(args...)
	_, stderr, exitCode, err := a.Root.Exec(cmd)
	if err != nil {
		return errors.WrapWithCode(err, code, message, "Check the SSH connection and re-run")
	}
	if exitCode != 0 {
		return exec.CommandFailed(code, message, cmd, string(stderr), exitCode)
	}
	return nil
}
