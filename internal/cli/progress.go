package cli

import (
	"github.com/atotto/clipboard"
	"github.com/rileyhilliard/tunnelup/internal/converge"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/rileyhilliard/tunnelup/internal/workflow"
)

// progress shows a run as phases, one per workflow state.
type progress struct {
	display *ui.PhaseDisplay
	// static disables the spinner for user creation, which may hand the
	// terminal to passwd.
	static bool
	// codeShown is set once a device code has been printed.
	codeShown bool

	copyFn func(string) error
	openFn func(string) error
}

func newProgress(display *ui.PhaseDisplay, static bool) *progress {
	return &progress{
		display: display,
		static:  static,
		copyFn:  clipboard.WriteAll,
		openFn:  exec.OpenURL,
	}
}

// attach wires the workflow's hooks to the display.
func (p *progress) attach(w *workflow.Workflow) {
	w.OnTransition = p.transition
	w.OnAction = p.action
	w.OnAuth = p.auth
	w.Clipboard = p.clipboard
	w.Browser = p.browser
	if w.Prompt != nil {
		w.Prompt = p.prompt(w.Prompt)
	}
}

// prompt pauses the spinner while the operator types a password.
func (p *progress) prompt(inner exec.PasswordPrompt) exec.PasswordPrompt {
	return func(user, host string) (string, error) {
		p.display.Pause()
		return inner(user, host)
	}
}

func (p *progress) transition(t workflow.Transition) {
	switch {
	case t.To == workflow.StateFailed:
		p.display.Fail()
	case t.To == workflow.StateDone && t.From == workflow.StateAwaitDeviceCode && p.codeShown:
		p.display.Begin(workflow.StateAwaitConnection.Label())
		p.display.Succeed()
	case t.To == workflow.StateDone && t.From == workflow.StateAwaitDeviceCode:
		p.display.Succeed()
		p.display.Skip(workflow.StateAwaitConnection.Label(), "already signed in")
	case t.To == workflow.StateDone:
		p.display.Succeed()
	case t.To == workflow.StateUserProvisioning && p.static:
		p.display.BeginStatic(t.To.Label())
	default:
		p.display.Begin(t.To.Label())
	}
}

func (p *progress) action(a converge.Action) {
	p.display.RenderSubStatus(ui.SymbolComplete, a.String())
}

func (p *progress) auth(ev logpoll.AuthEvent) {
	p.codeShown = true
	p.display.Succeed()
	p.display.Println(ui.RenderDeviceCode(ev.DeviceCode, ev.LoginURL, false))
}

func (p *progress) clipboard(code string) error {
	if err := p.copyFn(code); err != nil {
		return err
	}
	p.display.RenderSubStatus(ui.SymbolSuccess, "copied "+code+" to the clipboard")
	return nil
}

func (p *progress) browser(url string) error {
	if err := p.openFn(url); err != nil {
		return err
	}
	p.display.RenderSubStatus(ui.SymbolSuccess, "opened "+url)
	return nil
}

// summary converts a finished run's report for display.
func summary(r workflow.Report) ui.RunSummary {
	return ui.RunSummary{
		Host:            r.Host,
		User:            r.User,
		Tunnel:          r.Tunnel,
		URL:             r.URL,
		Duration:        r.Duration,
		UserCreated:     r.UserCreated,
		Actions:         mutatingActions(r),
		AlreadySignedIn: r.AlreadySignedIn,
		Heuristic:       r.Heuristic,
		Markers:         r.Markers,
		LogHint:         "tunnelup logs " + r.Host,
	}
}

// mutatingActions drops the restart pair from the step count.
func mutatingActions(r workflow.Report) []string {
	out := make([]string, 0, r.Mutations)
	for _, a := range r.Actions {
		if a == converge.StopIfRunning.String() || a == converge.StartUnit.String() {
			continue
		}
		out = append(out, a)
	}
	return out
}
