package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// Phase is one step of a run as it was shown.
type Phase struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Success   bool
	Skipped   bool
}

// Duration returns the phase duration.
func (p Phase) Duration() time.Duration {
	if p.EndTime.IsZero() {
		return time.Since(p.StartTime)
	}
	return p.EndTime.Sub(p.StartTime)
}

// PhaseDisplay renders a sequence of phases, one spinner at a time.
// Beginning a phase completes the one before it.
//
//	● Checking connectivity 0.4s
//	● Installing 3.1s
//	  ● download VS Code CLI (x64)
//	⣾ Waiting for device code...
type PhaseDisplay struct {
	mu       sync.Mutex
	w        io.Writer
	animated bool
	current  *Spinner
	phases   []Phase
}

// NewPhaseDisplay creates a phase display writing to w. Spinners animate
// only when animated is set, which callers tie to w being a terminal.
func NewPhaseDisplay(w io.Writer, animated bool) *PhaseDisplay {
	return &PhaseDisplay{w: w, animated: animated}
}

// Begin starts a new phase.
func (pd *PhaseDisplay) Begin(name string) {
	pd.begin(name, pd.animated)
}

// BeginStatic starts a phase without animation, for phases that hand the
// terminal to an interactive prompt.
func (pd *PhaseDisplay) BeginStatic(name string) {
	pd.begin(name, false)
}

func (pd *PhaseDisplay) begin(name string, animated bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.end(true)

	pd.current = NewSpinner(pd.w, name, animated)
	pd.current.Start()
	pd.phases = append(pd.phases, Phase{Name: name, StartTime: time.Now()})
}

// Succeed completes the running phase.
func (pd *PhaseDisplay) Succeed() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.end(true)
}

// Fail marks the running phase as failed.
func (pd *PhaseDisplay) Fail() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.end(false)
}

// Pause stops the running phase's animation so a prompt can take the
// terminal. The phase stays open and still ends with Succeed or Fail.
func (pd *PhaseDisplay) Pause() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.current != nil {
		pd.current.Stop()
	}
}

// Skip renders a phase that didn't run.
// Shows: ⊘ Waiting for sign-in (already signed in)
func (pd *PhaseDisplay) Skip(name, reason string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.end(true)

	s := NewSpinner(pd.w, name, false)
	s.Start()
	s.Skip(reason)
	now := time.Now()
	pd.phases = append(pd.phases, Phase{Name: name, StartTime: now, EndTime: now, Skipped: true})
}

// RenderSubStatus renders an indented line under the running phase.
// Shows:   ● create user vscode
func (pd *PhaseDisplay) RenderSubStatus(symbol, text string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.println(fmt.Sprintf("  %s %s", MutedStyle().Render(symbol), text))
}

// Println writes a line without disturbing the spinner.
func (pd *PhaseDisplay) Println(line string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.println(line)
}

// Divider renders a horizontal line.
func (pd *PhaseDisplay) Divider() {
	pd.Println("\n" + FormatDivider(DividerWidth) + "\n")
}

// Phases returns the phases shown so far.
func (pd *PhaseDisplay) Phases() []Phase {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	out := make([]Phase, len(pd.phases))
	copy(out, pd.phases)
	return out
}

func (pd *PhaseDisplay) println(line string) {
	if pd.current != nil {
		pd.current.Println(line)
		return
	}
	fmt.Fprintln(pd.w, line)
}

// end expects pd.mu held.
func (pd *PhaseDisplay) end(ok bool) {
	if pd.current == nil {
		return
	}
	if ok {
		pd.current.Success()
	} else {
		pd.current.Fail()
	}
	last := &pd.phases[len(pd.phases)-1]
	last.EndTime = time.Now()
	last.Success = ok
	pd.current = nil
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	return MutedStyle().Render(strings.Repeat("━", width))
}
