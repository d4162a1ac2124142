// Package ui provides terminal output for tunnelup: phase spinners, the
// sign-in box, the run summary and the status table, styled with Lip Gloss.
//
// # Phases
//
// PhaseDisplay shows one spinner per workflow phase. Beginning a phase
// completes the previous one:
//
//	pd := ui.NewPhaseDisplay(os.Stderr, isTTY)
//	pd.Begin("Checking connectivity")
//	pd.RenderSubStatus(ui.SymbolComplete, "create user vscode")
//	pd.Begin("Waiting for device code")
//	pd.Fail()
//
// Without a TTY the spinners don't animate and only the final lines are
// written, so logs stay readable.
//
// # Colors
//
// SetColorMode selects the lipgloss profile from --color (auto, always,
// never). In auto mode termenv inspects the writer and honors NO_COLOR.
//
// # Prompts
//
// Confirm and SudoPassword use Huh forms. Callers only prompt when stdin is
// a terminal.
package ui
