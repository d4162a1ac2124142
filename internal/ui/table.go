package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Check statuses for RenderStatusTable.
const (
	CheckPass = "pass"
	CheckWarn = "warn"
	CheckFail = "fail"
)

// StatusRow is one line of `tunnelup status`.
type StatusRow struct {
	Status     string // CheckPass, CheckWarn or CheckFail
	Item       string // what was checked, e.g. "unit"
	Detail     string
	Suggestion string // shown for anything but a pass
}

// RenderStatusTable renders status rows with aligned item names.
func RenderStatusTable(rows []StatusRow) string {
	if len(rows) == 0 {
		return "Nothing to report\n"
	}

	width := 0
	for _, row := range rows {
		if w := lipgloss.Width(row.Item); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		var icon string
		switch row.Status {
		case CheckPass:
			icon = SuccessStyle().Render(SymbolComplete)
		case CheckWarn:
			icon = WarningStyle().Render(SymbolComplete)
		case CheckFail:
			icon = ErrorStyle().Render(SymbolFail)
		default:
			icon = MutedStyle().Render(SymbolPending)
		}

		sb.WriteString("  " + icon + " " + padRight(row.Item, width+2) + row.Detail + "\n")
		if row.Suggestion != "" && row.Status != CheckPass {
			sb.WriteString("    " + strings.Repeat(" ", width+2) + MutedStyle().Render(row.Suggestion) + "\n")
		}
	}
	return sb.String()
}

// padRight pads a string to the specified visible width.
func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
