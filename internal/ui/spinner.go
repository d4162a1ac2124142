package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerState is where a spinner is in its life.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
	SpinnerSkipped
)

// phaseSpinner is the braille animation shown next to a running phase.
var phaseSpinner = spinner.Spinner{
	Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
	FPS:    80 * time.Millisecond,
}

var (
	spinnerFrames = phaseSpinner.Frames
	spinnerTick   = phaseSpinner.FPS
)

// Spinner draws "⣾ label..." while a phase runs and replaces it with one
// status line when the phase ends. A static spinner (no terminal) writes
// the status line only.
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	animated bool
	label    string
	state    SpinnerState
	now      func() time.Time
	started  time.Time

	frame   int
	drawn   string        // text currently on the terminal line
	quit    chan struct{} // closed by Stop
	stopped chan struct{} // closed when the animation goroutine exits
}

func NewSpinner(w io.Writer, label string, animated bool) *Spinner {
	return &Spinner{w: w, animated: animated, label: label, now: time.Now}
}

// Start marks the phase running. It does nothing if already running.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return
	}
	s.state = SpinnerInProgress
	s.started = s.now()
	s.quit = make(chan struct{})
	s.stopped = make(chan struct{})

	if !s.animated {
		close(s.stopped)
		return
	}
	s.draw()
	go s.loop(s.quit, s.stopped)
}

func (s *Spinner) loop(quit <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	tick := time.NewTicker(phaseSpinner.FPS)
	defer tick.Stop()
	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(phaseSpinner.Frames)
			s.draw()
			s.mu.Unlock()
		}
	}
}

// Stop ends the animation and erases the spinner line. The state stays
// InProgress; Success, Fail or Skip still decide the outcome.
func (s *Spinner) Stop() {
	s.mu.Lock()
	quit, stopped := s.quit, s.stopped
	s.quit = nil
	s.mu.Unlock()
	if quit == nil {
		return
	}

	close(quit)
	<-stopped

	s.mu.Lock()
	s.erase()
	s.mu.Unlock()
}

func (s *Spinner) Success()           { s.finish(SpinnerSuccess, "") }
func (s *Spinner) Fail()              { s.finish(SpinnerFailed, "") }
func (s *Spinner) Skip(reason string) { s.finish(SpinnerSkipped, reason) }

func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// SetLabel renames the phase from the next frame on.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// Println prints line above the spinner.
func (s *Spinner) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.erase()
	fmt.Fprintln(s.w, line)
	if s.quit != nil && s.animated {
		s.draw()
	}
}

var finalMarks = map[SpinnerState]struct {
	symbol string
	style  func() lipgloss.Style
}{
	SpinnerSuccess: {SymbolComplete, SuccessStyle},
	SpinnerFailed:  {SymbolFail, ErrorStyle},
	SpinnerSkipped: {SymbolSkipped, WarningStyle},
}

func (s *Spinner) finish(state SpinnerState, reason string) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state

	mark, ok := finalMarks[state]
	if !ok {
		mark.symbol, mark.style = SymbolPending, MutedStyle
	}
	tail := formatDuration(s.now().Sub(s.started))
	if reason != "" {
		tail = "(" + reason + ")"
	}
	fmt.Fprintf(s.w, "%s %s %s\n", mark.style().Render(mark.symbol), s.label, MutedStyle().Render(tail))
}

// draw expects s.mu held.
func (s *Spinner) draw() {
	color := GradientColors[(s.frame/2)%len(GradientColors)]
	glyph := lipgloss.NewStyle().Foreground(color).Render(phaseSpinner.Frames[s.frame])
	s.erase()
	s.drawn = glyph + " " + s.label + "..."
	fmt.Fprint(s.w, s.drawn)
}

// erase expects s.mu held.
func (s *Spinner) erase() {
	if s.drawn == "" {
		return
	}
	fmt.Fprint(s.w, "\r"+strings.Repeat(" ", lipgloss.Width(s.drawn))+"\r")
	s.drawn = ""
}

// formatDuration renders 0.03s, 12.4s or 2m05s.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d/time.Minute), int(d%time.Minute/time.Second))
	case d < 100*time.Millisecond:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
