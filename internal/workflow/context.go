package workflow

import (
	"time"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/converge"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/host"
	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/setup"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// Context carries everything one run learns and decides. Each state
// handler reads what earlier states left and fills in its own part.
type Context struct {
	Target    config.Target
	Desired   converge.Desired
	AdminUser string

	State   State
	History []Transition
	Started time.Time

	// Sessions holds every SSH login opened during the run, by user.
	Sessions *host.Sessions
	// Session is the login convergence runs over: the service user when
	// it can reach root, the admin login otherwise.
	Session sshutil.SSHClient
	Root    *exec.Runner

	Provisioned bool
	UserSetup   setup.Result

	RawArch  string
	Observed converge.Observed
	Plan     []converge.Action
	// Applied lists every action that ran, in order.
	Applied []converge.Action
	restart []converge.Action

	// Since is the remote epoch taken just before the service started.
	Since int64

	Auth       *logpoll.AuthEvent
	Connection *logpoll.ConnectionEvent

	Err error
}

func newContext(opts Options) *Context {
	return &Context{
		Target: opts.Target,
		Desired: converge.Desired{
			User:    opts.User,
			Tunnel:  converge.TunnelIdentity{Name: opts.TunnelName},
			Quality: opts.Quality,
			Force:   opts.Force,
		},
		AdminUser: opts.AdminUser,
		State:     StateInit,
		Started:   time.Now(),
		Sessions:  host.NewSessions(),
	}
}

// States returns the sequence of states the run went through.
func (c *Context) States() []State {
	out := []State{StateInit}
	for _, t := range c.History {
		out = append(out, t.To)
	}
	return out
}

// AppliedKinds returns the kinds of the applied actions.
func (c *Context) AppliedKinds() []converge.ActionKind {
	out := make([]converge.ActionKind, 0, len(c.Applied))
	for _, a := range c.Applied {
		out = append(out, a.Kind)
	}
	return out
}

// Mutations counts applied actions that changed the host.
func (c *Context) Mutations() int {
	return converge.Mutations(c.Applied)
}

// URL is the tunnel's connect URL. A URL logged by the tunnel wins over
// the one derived from the name.
func (c *Context) URL() string {
	if c.Connection != nil && c.Connection.URL != "" {
		return c.Connection.URL
	}
	return c.Desired.Tunnel.URL()
}
