package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RunSummary holds what a finished run shows the operator.
// This mirrors workflow.Report so ui stays free of workflow imports.
type RunSummary struct {
	Host            string
	User            string
	Tunnel          string
	URL             string
	Duration        string
	UserCreated     bool
	Actions         []string
	AlreadySignedIn bool
	Heuristic       bool
	Markers         []string
	LogHint         string // command that shows the tunnel log
}

// SummaryRenderer formats run summaries for terminal display.
type SummaryRenderer struct {
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	urlStyle     lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a new summary renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		successStyle: SuccessStyle().Bold(true),
		warnStyle:    WarningStyle(),
		urlStyle:     lipgloss.NewStyle().Foreground(ColorNeonCyan).Underline(true),
		mutedStyle:   MutedStyle(),
	}
}

// RenderSummary renders s with the default renderer.
func RenderSummary(s RunSummary) string {
	return NewSummaryRenderer().Render(s)
}

// Render generates the formatted summary string.
func (r *SummaryRenderer) Render(s RunSummary) string {
	var sb strings.Builder

	sb.WriteString(r.successStyle.Render(fmt.Sprintf("%s Tunnel %s is connected", SymbolSuccess, s.Tunnel)))
	sb.WriteString("\n  ")
	sb.WriteString(r.urlStyle.Render(s.URL))
	sb.WriteString("\n")

	facts := []string{"host " + s.Host, "user " + s.User}
	if s.UserCreated {
		facts[1] += " (created)"
	}
	switch n := len(s.Actions); {
	case n == 0:
		facts = append(facts, "no changes")
	case n == 1:
		facts = append(facts, "1 step")
	default:
		facts = append(facts, fmt.Sprintf("%d steps", n))
	}
	if s.Duration != "" {
		facts = append(facts, s.Duration)
	}
	sb.WriteString("  ")
	sb.WriteString(r.mutedStyle.Render(strings.Join(facts, " · ")))
	sb.WriteString("\n")

	if s.AlreadySignedIn {
		sb.WriteString("  ")
		sb.WriteString(r.mutedStyle.Render("Already signed in, no device code needed"))
		sb.WriteString("\n")
	}
	if s.Heuristic {
		sb.WriteString("  ")
		sb.WriteString(r.warnStyle.Render(fmt.Sprintf("%s Connection inferred from log keywords (%s)",
			SymbolWarning, strings.Join(s.Markers, ", "))))
		sb.WriteString("\n")
		if s.LogHint != "" {
			sb.WriteString("    ")
			sb.WriteString(r.mutedStyle.Render("Check with: " + s.LogHint))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// RenderDeviceCode renders the sign-in box.
//
//	╭──────────────────────────────────────────╮
//	│ Sign in at https://github.com/login/device │
//	│ and enter ABCD-1234 (copied)               │
//	╰──────────────────────────────────────────╯
func RenderDeviceCode(code, loginURL string, copied bool) string {
	codeStyle := lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true)
	urlStyle := lipgloss.NewStyle().Foreground(ColorNeonCyan).Underline(true)

	second := "and enter " + codeStyle.Render(code)
	if copied {
		second += " " + MutedStyle().Render("(copied)")
	}
	body := "Sign in at " + urlStyle.Render(loginURL) + "\n" + second

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1).
		Render(body)
}
