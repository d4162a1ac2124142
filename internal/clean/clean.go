// Package clean removes the tunnel service from a remote host. The service
// user and its home directory are left alone.
package clean

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// RemoteExecutor runs commands on a remote host as root.
// Satisfied by *exec.Runner and test mocks.
type RemoteExecutor interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
}

// Artifact kinds.
const (
	KindUnit   = "unit"
	KindBinary = "binary"
)

// Artifact is a file tunnelup installed.
type Artifact struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// removable is the allowlist of paths Remove will delete.
var removable = map[string]string{
	unit.Path:       KindUnit,
	unit.BinaryPath: KindBinary,
}

// Discover lists the installed artifacts. The binary is only included
// when purge is set, since other tools may use the CLI.
func Discover(executor RemoteExecutor, purge bool) ([]Artifact, error) {
	paths := []string{unit.Path}
	if purge {
		paths = append(paths, unit.BinaryPath)
	}

	var found []Artifact
	for _, p := range paths {
		_, _, exitCode, err := executor.Exec("test -e " + util.ShellQuote(p))
		if err != nil {
			return nil, err
		}
		if exitCode == 0 {
			found = append(found, Artifact{Path: p, Kind: removable[p]})
		}
	}
	return found, nil
}

// Remove stops and disables the service, then deletes artifacts. It keeps
// going after a failure and returns every error it hit. Stopping a unit
// that isn't loaded is not an error.
func Remove(executor RemoteExecutor, artifacts []Artifact) (removed []string, errs []error) {
	if _, _, _, err := executor.Exec(util.ShellJoin("systemctl", "disable", "--now", unit.Name)); err != nil {
		return nil, []error{fmt.Errorf("failed to stop %s: %v", unit.Name, err)}
	}

	unitRemoved := false
	for _, a := range artifacts {
		if err := validateRemovalTarget(a); err != nil {
			errs = append(errs, fmt.Errorf("refusing to delete %q: %s", a.Path, err))
			continue
		}
		if err := run(executor, "rm -f "+util.ShellQuote(a.Path)); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %s", a.Path, err))
			continue
		}
		removed = append(removed, a.Path)
		if a.Kind == KindUnit {
			unitRemoved = true
		}
	}

	if unitRemoved {
		if err := run(executor, "systemctl daemon-reload"); err != nil {
			errs = append(errs, fmt.Errorf("daemon-reload failed: %s", err))
		}
	}
	return removed, errs
}

// validateRemovalTarget only allows the exact paths tunnelup writes.
func validateRemovalTarget(a Artifact) error {
	kind, ok := removable[strings.TrimSpace(a.Path)]
	if !ok {
		return fmt.Errorf("not a tunnelup file")
	}
	if kind != a.Kind {
		return fmt.Errorf("is the %s, not the %s", kind, a.Kind)
	}
	return nil
}

func run(executor RemoteExecutor, cmd string) error {
	_, stderr, exitCode, err := executor.Exec(cmd)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return fmt.Errorf("%v (stderr: %s)", err, msg)
		}
		return err
	}
	if exitCode != 0 {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("exit code %d", exitCode)
	}
	return nil
}
