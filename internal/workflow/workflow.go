// Package workflow drives one provisioning run as an explicit state machine:
//
//	Init → ConnectivityCheck → UserProvisioning? → Converge → ServiceStart
//	     → AwaitDeviceCode → AwaitConnection → Done
//
// with Failed reachable from every state. Steps run strictly in sequence
// and nothing is retried; every mutating step is idempotent, so re-running
// after a failure or an interrupt resumes where the last run stopped.
package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/converge"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/host"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/setup"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/rileyhilliard/tunnelup/internal/util"
	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// Options is what the operator asked for.
type Options struct {
	Target     config.Target
	User       string
	TunnelName string
	AdminUser  string
	Quality    string
	Force      bool
	NoPassword bool

	ConnectTimeout   time.Duration
	DeviceCodeBudget time.Duration
	ConnectionBudget time.Duration
	PollInterval     time.Duration
	JournalLines     int

	// Helper starts the clipboard/browser helper once the service is up.
	Helper      bool
	NoClipboard bool
	NoBrowser   bool
}

// OptionsFromConfig fills Options from the effective configuration.
func OptionsFromConfig(cfg *config.Config, hostArg string) Options {
	return Options{
		Target: config.Target{
			Host:         hostArg,
			Port:         cfg.Port,
			IdentityFile: config.ExpandTilde(cfg.IdentityFile),
		},
		User:             cfg.User,
		TunnelName:       cfg.TunnelName,
		AdminUser:        cfg.AdminUser,
		Quality:          cfg.Quality,
		ConnectTimeout:   cfg.Timeouts.Connect,
		DeviceCodeBudget: cfg.Timeouts.DeviceCode,
		ConnectionBudget: cfg.Timeouts.Connection,
		PollInterval:     cfg.Timeouts.PollInterval,
		JournalLines:     cfg.Journal.Lines,
		Helper:           cfg.Output.Clipboard || cfg.Output.Browser,
		NoClipboard:      !cfg.Output.Clipboard,
		NoBrowser:        !cfg.Output.Browser,
	}
}

// Workflow runs the state machine against one host.
type Workflow struct {
	Opts Options

	Dial   host.Dialer
	Prompt exec.PasswordPrompt
	Poller logpoll.Poller
	Log    logger.Logger

	// Terminal bound to the interactive passwd session.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Clipboard and Browser override the helper's defaults.
	Clipboard func(string) error
	Browser   func(string) error

	// RunID names remote temp files.
	RunID string

	OnTransition func(Transition)
	OnAction     func(converge.Action)
	OnAuth       func(logpoll.AuthEvent)

	helperCtx context.Context
}

// New returns a Workflow that dials real SSH connections.
func New(opts Options) *Workflow {
	return &Workflow{
		Opts: opts,
		Dial: host.DialSSH,
		Log:  logger.NewEnvLogger("[workflow]"),
	}
}

type handler func(ctx context.Context, wc *Context) (State, string, error)

// Run drives the machine from Init to Done or Failed. The returned Context
// is never nil; on failure its Err equals the returned error. Every session
// opened during the run is closed and the device-code helper is cancelled
// before Run returns.
func (w *Workflow) Run(ctx context.Context) (*Context, error) {
	w.defaults()
	wc := newContext(w.Opts)
	defer wc.Sessions.CloseAll()

	helperCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.helperCtx = helperCtx

	handlers := map[State]handler{
		StateInit:              w.validate,
		StateConnectivityCheck: w.connect,
		StateUserProvisioning:  w.provision,
		StateConverge:          w.converge,
		StateServiceStart:      w.startService,
		StateAwaitDeviceCode:   w.awaitDeviceCode,
		StateAwaitConnection:   w.awaitConnection,
	}

	for !wc.State.Terminal() {
		next, note, err := handlers[wc.State](ctx, wc)
		if err == nil {
			err = w.move(wc, next, note)
		}
		if err != nil {
			wc.Err = interrupted(ctx, err)
			_ = w.move(wc, StateFailed, errors.CodeOf(wc.Err))
		}
	}
	return wc, wc.Err
}

func (w *Workflow) defaults() {
	if w.Log == nil {
		w.Log = logger.Noop()
	}
	if w.Dial == nil {
		w.Dial = host.DialSSH
	}
	if w.Opts.AdminUser == "" {
		w.Opts.AdminUser = "root"
	}
	if w.Opts.Quality == "" {
		w.Opts.Quality = config.QualityStable
	}
	d := config.DefaultConfig()
	if w.Opts.ConnectTimeout <= 0 {
		w.Opts.ConnectTimeout = d.Timeouts.Connect
	}
	if w.Opts.DeviceCodeBudget <= 0 {
		w.Opts.DeviceCodeBudget = d.Timeouts.DeviceCode
	}
	if w.Opts.ConnectionBudget <= 0 {
		w.Opts.ConnectionBudget = d.Timeouts.Connection
	}
	if w.Opts.PollInterval <= 0 {
		w.Opts.PollInterval = d.Timeouts.PollInterval
	}
	if w.Opts.JournalLines <= 0 {
		w.Opts.JournalLines = d.Journal.Lines
	}
}

func (w *Workflow) move(wc *Context, to State, note string) error {
	if !CanTransition(wc.State, to) {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Illegal transition %s → %s", wc.State, to), "")
	}
	t := Transition{From: wc.State, To: to, At: time.Now(), Note: note}
	wc.History = append(wc.History, t)
	wc.State = to
	w.Log.Debug("%s → %s %s", t.From, t.To, note)
	if w.OnTransition != nil {
		w.OnTransition(t)
	}
	return nil
}

func interrupted(ctx context.Context, err error) error {
	if ctx.Err() == nil || errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrExec,
		"Interrupted",
		"Re-run tunnelup; completed steps are skipped")
}

// validate checks names before any remote command runs.
func (w *Workflow) validate(_ context.Context, wc *Context) (State, string, error) {
	if wc.Target.Host == "" {
		return 0, "", errors.New(errors.ErrValidation, "No host given", "Usage: tunnelup <host>")
	}
	if wc.Desired.Tunnel.Name == "" {
		wc.Desired.Tunnel.Name = config.DefaultTunnelName(wc.Target.Host)
	}
	if err := config.ValidateUser(wc.Desired.User); err != nil {
		return 0, "", err
	}
	if err := config.ValidateUser(wc.AdminUser); err != nil {
		return 0, "", err
	}
	if err := config.ValidateTunnelName(wc.Desired.Tunnel.Name); err != nil {
		return 0, "", err
	}
	return StateConnectivityCheck, fmt.Sprintf("user %s, tunnel %s", wc.Desired.User, wc.Desired.Tunnel.Name), nil
}

func (w *Workflow) connect(_ context.Context, wc *Context) (State, string, error) {
	user, admin := wc.Desired.User, wc.AdminUser

	client, latency, err := host.Probe(w.Dial, wc.Target, user, w.Opts.ConnectTimeout)
	if err == nil {
		wc.Sessions.Set(user, client)
		wc.Session = client
		return StateConverge, fmt.Sprintf("logged in as %s in %s", user, latency.Round(time.Millisecond)), nil
	}
	w.Log.Debug("login as %s failed: %v", user, err)
	if user == admin {
		return 0, "", probeFailure(err)
	}

	adminClient, _, adminErr := host.Probe(w.Dial, wc.Target, admin, w.Opts.ConnectTimeout)
	if adminErr != nil {
		pe := asProbeError(adminErr)
		return 0, "", errors.WrapWithCode(adminErr, errors.ErrConnectivity,
			fmt.Sprintf("Can't log in to %s as %s or as %s", wc.Target.Host, user, admin),
			pe.Hint())
	}
	wc.Sessions.Set(admin, adminClient)
	wc.Session = adminClient
	return StateUserProvisioning, fmt.Sprintf("login as %s failed (%s), continuing as %s", user, asProbeError(err).Reason, admin), nil
}

func (w *Workflow) provision(ctx context.Context, wc *Context) (State, string, error) {
	runner, err := exec.NewRunner(wc.Session, w.Prompt, w.Log)
	if err != nil {
		return 0, "", err
	}
	wc.Root = runner

	prov := w.provisioner(wc)
	create := []converge.Action{{Kind: converge.CreateUser, Reason: "login failed"}}
	if err := w.applier(wc, prov).Apply(ctx, create, wc.Desired); err != nil {
		return 0, "", err
	}
	wc.Provisioned = true
	wc.UserSetup = prov.Last

	user := wc.Desired.User
	client, _, err := host.Probe(w.Dial, wc.Target, user, w.Opts.ConnectTimeout)
	if err != nil {
		pe := asProbeError(err)
		hint := pe.Hint()
		if !prov.Last.KeysCopied {
			hint = fmt.Sprintf("%s had no authorized_keys to copy. Add your public key to ~%s/.ssh/authorized_keys on the host and re-run", wc.AdminUser, user)
		}
		return 0, "", errors.WrapWithCode(err, errors.ErrUserCreation,
			fmt.Sprintf("Created %s but can't log in as them: %s", user, pe.Reason), hint)
	}
	wc.Sessions.Set(user, client)

	note := "user " + user + " ready"
	if prov.Last.Created {
		note = "created user " + user
	}
	return StateConverge, note, nil
}

func (w *Workflow) provisioner(wc *Context) *setup.Provisioner {
	return &setup.Provisioner{
		Root: wc.Root,
		Opts: setup.Options{
			AdminUser:  wc.AdminUser,
			NoPassword: w.Opts.NoPassword,
			Stdin:      w.Stdin,
			Stdout:     w.Stdout,
			Stderr:     w.Stderr,
			Log:        w.Log,
		},
	}
}

func (w *Workflow) applier(wc *Context, users converge.UserCreator) *converge.Applier {
	return &converge.Applier{
		Root:  wc.Root,
		Users: users,
		Log:   w.Log,
		RunID: w.RunID,
		OnAction: func(a converge.Action) {
			wc.Applied = append(wc.Applied, a)
			if w.OnAction != nil {
				w.OnAction(a)
			}
		},
	}
}

func (w *Workflow) converge(ctx context.Context, wc *Context) (State, string, error) {
	if wc.Root == nil {
		if err := w.escalate(wc); err != nil {
			return 0, "", err
		}
	}

	target, raw, err := converge.DetectTarget(wc.Session)
	wc.RawArch = raw
	if err != nil {
		return 0, "", err
	}
	wc.Desired.Target = target

	observed, err := converge.Observe(wc.Session, wc.Desired)
	if err != nil {
		return 0, "", err
	}
	wc.Observed = observed
	wc.Plan = converge.Plan(observed, wc.Desired)

	actions, restart := converge.Split(wc.Plan)
	wc.restart = restart
	if err := w.applier(wc, w.provisioner(wc)).Apply(ctx, actions, wc.Desired); err != nil {
		return 0, "", err
	}

	if len(actions) == 0 {
		return StateServiceStart, "already up to date", nil
	}
	return StateServiceStart, fmt.Sprintf("%d %s applied", len(actions), util.Pluralize(len(actions), "change", "changes")), nil
}

// escalate finds a way to root for a run that logged in as the service
// user. Paths that need no password come first: the service user itself,
// then the admin login. A service user created with --no-password has no
// sudo password, so on a re-run the admin login is what still works.
// Password prompts are the last resort.
func (w *Workflow) escalate(wc *Context) error {
	user, admin := wc.Session.GetUser(), wc.AdminUser

	runner, firstErr := exec.NewRunner(wc.Session, nil, w.Log)
	if firstErr == nil {
		wc.Root = runner
		return nil
	}
	w.Log.Debug("%s has no passwordless root: %v", user, firstErr)

	candidates := []sshutil.SSHClient{wc.Session}
	if user != admin {
		adminClient, _, err := host.Probe(w.Dial, wc.Target, admin, w.Opts.ConnectTimeout)
		if err != nil {
			w.Log.Debug("login as %s failed: %v", admin, err)
		} else {
			wc.Sessions.Set(admin, adminClient)
			if runner, err := exec.NewRunner(adminClient, nil, w.Log); err == nil {
				wc.Session, wc.Root = adminClient, runner
				return nil
			}
			candidates = append(candidates, adminClient)
		}
	}

	if w.Prompt == nil {
		return firstErr
	}
	var promptErr error
	for _, client := range candidates {
		runner, err := exec.NewRunner(client, w.Prompt, w.Log)
		if err == nil {
			wc.Session, wc.Root = client, runner
			return nil
		}
		if promptErr == nil {
			promptErr = err
		}
	}
	return promptErr
}

func (w *Workflow) startService(ctx context.Context, wc *Context) (State, string, error) {
	since, err := logpoll.RemoteNow(wc.Session)
	if err != nil {
		return 0, "", err
	}
	wc.Since = since

	if err := w.applier(wc, nil).Apply(ctx, wc.restart, wc.Desired); err != nil {
		return 0, "", err
	}

	if w.Opts.Helper {
		h := &logpoll.Helper{
			Source:         w.journal(wc),
			Budget:         w.Opts.DeviceCodeBudget,
			Interval:       w.Opts.PollInterval,
			Clipboard:      w.Clipboard,
			Browser:        w.Browser,
			DisableCopy:    w.Opts.NoClipboard,
			DisableBrowser: w.Opts.NoBrowser,
			Log:            w.Log,
		}
		h.Start(w.helperCtx)
	}
	return StateAwaitDeviceCode, "started " + unit.Name, nil
}

func (w *Workflow) journal(wc *Context) logpoll.JournalSource {
	return logpoll.JournalSource{
		Client: wc.Root,
		Unit:   unit.Name,
		Since:  wc.Since,
		Lines:  w.Opts.JournalLines,
	}
}

func (w *Workflow) awaitDeviceCode(ctx context.Context, wc *Context) (State, string, error) {
	name := wc.Desired.Tunnel.Name
	matcher := logpoll.Merged(
		logpoll.DeviceCodeMatcher{},
		logpoll.ConnectionMatcher{Tunnel: name, Strict: true},
	)

	match, err := w.Poller.PollFor(ctx, matcher, w.Opts.DeviceCodeBudget, w.Opts.PollInterval, w.journal(wc))
	if stderrors.Is(err, logpoll.ErrTimeout) {
		return 0, "", w.authTimeout(wc)
	}
	if err != nil {
		return 0, "", err
	}

	if match.Auth != nil {
		wc.Auth = match.Auth
		if w.OnAuth != nil {
			w.OnAuth(*match.Auth)
		}
	}
	switch {
	case match.Connection != nil && match.Auth != nil:
		wc.Connection = match.Connection
		return StateDone, "signed in with device code " + match.Auth.DeviceCode, nil
	case match.Connection != nil:
		wc.Connection = match.Connection
		return StateDone, "tunnel is already signed in", nil
	}
	return StateAwaitConnection, "device code " + match.Auth.DeviceCode, nil
}

// authTimeout builds the AUTH_TIMEOUT error. The usual cause is a host
// without IPv4 egress: the tunnel signs in through github.com, which has no
// AAAA record, so it hangs before printing a code.
func (w *Workflow) authTimeout(wc *Context) error {
	msg := fmt.Sprintf("The tunnel didn't print a device code within %s", w.Opts.DeviceCodeBudget)
	suggestion := fmt.Sprintf("Check the tunnel log with `tunnelup logs %s`", wc.Target.Host)

	stdout, _, code, err := wc.Session.Exec("ip -4 route show default")
	if err == nil && code == 0 && strings.TrimSpace(string(stdout)) == "" {
		suggestion = "The host has no IPv4 default route. Sign-in goes through github.com, which is IPv4 only; " +
			"give the host IPv4 egress (or NAT64/DNS64) and re-run"
	}
	return errors.New(errors.ErrAuthTimeout, msg, suggestion)
}

func (w *Workflow) awaitConnection(ctx context.Context, wc *Context) (State, string, error) {
	matcher := logpoll.ConnectionMatcher{Tunnel: wc.Desired.Tunnel.Name}

	match, err := w.Poller.PollFor(ctx, matcher, w.Opts.ConnectionBudget, w.Opts.PollInterval, w.journal(wc))
	if stderrors.Is(err, logpoll.ErrTimeout) {
		suggestion := "Re-run tunnelup to get a fresh code"
		if wc.Auth != nil && wc.Auth.LoginURL != "" {
			suggestion = fmt.Sprintf("Enter %s at %s, then re-run tunnelup", wc.Auth.DeviceCode, wc.Auth.LoginURL)
		}
		return 0, "", errors.New(errors.ErrConnectTimeout,
			fmt.Sprintf("Sign-in wasn't completed within %s", w.Opts.ConnectionBudget),
			suggestion)
	}
	if err != nil {
		return 0, "", err
	}

	wc.Connection = match.Connection
	if match.Connection.Heuristic {
		w.Log.Warn("no tunnel URL in the log, assuming connected from: %s", strings.Join(match.Connection.Markers, ", "))
		return StateDone, "connected (inferred from " + strings.Join(match.Connection.Markers, ", ") + ")", nil
	}
	return StateDone, "connected", nil
}

func asProbeError(err error) *host.ProbeError {
	var pe *host.ProbeError
	if stderrors.As(err, &pe) {
		return pe
	}
	return &host.ProbeError{Reason: host.ProbeFailUnknown, Cause: err}
}

func probeFailure(err error) error {
	var pe *host.ProbeError
	if stderrors.As(err, &pe) {
		return pe.AsError()
	}
	return errors.WrapWithCode(err, errors.ErrConnectivity, "Can't log in", "")
}
