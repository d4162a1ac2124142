package workflow

import (
	"time"

	"github.com/rileyhilliard/tunnelup/internal/errors"
)

// Report is the outcome of a run, shaped for --json output.
type Report struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Tunnel   string `json:"tunnel"`
	URL      string `json:"url,omitempty"`
	State    State  `json:"state"`
	Arch     string `json:"arch,omitempty"`
	ErrCode  string `json:"error_code,omitempty"`
	Duration string `json:"duration"`

	UserCreated bool     `json:"user_created"`
	Actions     []string `json:"actions"`
	Mutations   int      `json:"mutations"`

	DeviceCode string `json:"device_code,omitempty"`
	LoginURL   string `json:"login_url,omitempty"`

	// AlreadySignedIn is set when the tunnel connected without a new code.
	AlreadySignedIn bool `json:"already_signed_in"`
	// Heuristic is set when the connection was inferred from keywords.
	Heuristic bool     `json:"heuristic"`
	Markers   []string `json:"markers,omitempty"`

	History []Transition `json:"history"`
}

// Report summarizes the run.
func (c *Context) Report() Report {
	r := Report{
		Host:        c.Target.Host,
		User:        c.Desired.User,
		Tunnel:      c.Desired.Tunnel.Name,
		State:       c.State,
		Arch:        string(c.Desired.Target),
		ErrCode:     errors.CodeOf(c.Err),
		Duration:    c.elapsed().Round(time.Millisecond).String(),
		UserCreated: c.UserSetup.Created,
		Actions:     make([]string, 0, len(c.Applied)),
		Mutations:   c.Mutations(),
		History:     c.History,
	}
	for _, a := range c.Applied {
		r.Actions = append(r.Actions, a.Kind.String())
	}
	if c.Auth != nil {
		r.DeviceCode = c.Auth.DeviceCode
		r.LoginURL = c.Auth.LoginURL
	}
	if c.Connection != nil {
		r.URL = c.URL()
		r.AlreadySignedIn = c.Auth == nil
		r.Heuristic = c.Connection.Heuristic
		r.Markers = c.Connection.Markers
	}
	return r
}

func (c *Context) elapsed() time.Duration {
	if len(c.History) == 0 {
		return 0
	}
	return c.History[len(c.History)-1].At.Sub(c.Started)
}
