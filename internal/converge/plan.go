// Package converge compares the remote host with the desired tunnel setup
// and applies the smallest set of actions that closes the gap.
//
// Plan is pure: it takes an Observed snapshot and a Desired state and
// returns an ordered action list. Observe builds the snapshot over SSH and
// Applier executes the list. Every action is safe to repeat, so a run that
// is interrupted halfway converges on the next attempt.
package converge

import (
	"fmt"

	"github.com/rileyhilliard/tunnelup/internal/arch"
	"github.com/rileyhilliard/tunnelup/internal/unit"
)

// TunnelIdentity is the name the tunnel registers under.
type TunnelIdentity struct {
	Name string
}

// URL returns the public address of the tunnel.
func (t TunnelIdentity) URL() string {
	return "https://vscode.dev/tunnel/" + t.Name
}

// BinaryState records whether the CLI is installed. It is probed on every
// pass and never cached.
type BinaryState struct {
	Present bool
	Path    string
}

// Observed is a snapshot of the remote host.
type Observed struct {
	UserExists bool
	Binary     BinaryState
	Unit       unit.State
	// Downloader is "curl", "wget" or empty when neither is installed.
	Downloader string
}

// Desired is the state a run converges to.
type Desired struct {
	User    string
	Tunnel  TunnelIdentity
	Target  arch.Target
	Quality string
	// Force reinstalls the binary and rewrites the unit even when current.
	Force bool
}

// ActionKind identifies a convergence step.
type ActionKind int

const (
	CreateUser ActionKind = iota
	DownloadAndInstallBinary
	WriteUnitFile
	DaemonReload
	EnableUnit
	StopIfRunning
	StartUnit
)

var kindNames = map[ActionKind]string{
	CreateUser:               "create-user",
	DownloadAndInstallBinary: "install-binary",
	WriteUnitFile:            "write-unit",
	DaemonReload:             "daemon-reload",
	EnableUnit:               "enable-unit",
	StopIfRunning:            "stop",
	StartUnit:                "start",
}

func (k ActionKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one step of a plan.
type Action struct {
	Kind   ActionKind
	Reason string

	// Set for DownloadAndInstallBinary.
	URL        string
	Downloader string
}

// Mutating reports whether the action changes persistent host state.
// Restarting the service does not.
func (a Action) Mutating() bool {
	return a.Kind != StopIfRunning && a.Kind != StartUnit
}

func (a Action) String() string {
	if a.Reason == "" {
		return a.Kind.String()
	}
	return a.Kind.String() + " (" + a.Reason + ")"
}

// Plan returns the actions that take observed to desired, in execution
// order. The service is always restarted; everything else is emitted only
// when the host differs from desired or Force is set.
func Plan(observed Observed, desired Desired) []Action {
	var plan []Action

	if !observed.UserExists {
		plan = append(plan, Action{
			Kind:   CreateUser,
			Reason: fmt.Sprintf("user %s does not exist", desired.User),
		})
	}

	if !observed.Binary.Present || desired.Force {
		reason := "not installed"
		if observed.Binary.Present {
			reason = "forced"
		}
		plan = append(plan, Action{
			Kind:       DownloadAndInstallBinary,
			Reason:     reason,
			URL:        desired.Target.URL(quality(desired)),
			Downloader: observed.Downloader,
		})
	}

	drift := observed.Unit.Drift()
	if drift != "" || desired.Force {
		reason := unitReason(drift)
		plan = append(plan,
			Action{Kind: WriteUnitFile, Reason: reason},
			Action{Kind: DaemonReload},
			Action{Kind: EnableUnit},
		)
	}

	return append(plan, Action{Kind: StopIfRunning}, Action{Kind: StartUnit})
}

func quality(d Desired) string {
	if d.Quality == "" {
		return "stable"
	}
	return d.Quality
}

func unitReason(drift string) string {
	switch drift {
	case "absent":
		return "unit missing"
	case "user":
		return "service user changed"
	case "name":
		return "tunnel name changed"
	}
	return "forced"
}

// Split separates the convergence steps from the trailing service restart.
func Split(plan []Action) (converge, restart []Action) {
	for i, a := range plan {
		if !a.Mutating() {
			return plan[:i], plan[i:]
		}
	}
	return plan, nil
}

// Mutations counts the actions that change the host.
func Mutations(plan []Action) int {
	n := 0
	for _, a := range plan {
		if a.Mutating() {
			n++
		}
	}
	return n
}
