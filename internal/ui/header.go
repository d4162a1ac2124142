package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // e.g. "v0.3.0"
	Commit  string // optional short commit
	Tagline string // optional
}

// HeaderWidth is the width of the header divider.
const HeaderWidth = 50

// RenderHeader renders the name and version banner.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true)
	versionStyle := lipgloss.NewStyle().Foreground(ColorNeonCyan)

	var out strings.Builder
	out.WriteString(titleStyle.Render("tunnelup"))
	out.WriteString(" ")
	out.WriteString(versionStyle.Render(info.Version))
	if info.Commit != "" {
		out.WriteString(" ")
		out.WriteString(MutedStyle().Render("(" + info.Commit + ")"))
	}
	out.WriteString("\n")

	if info.Tagline != "" {
		out.WriteString(lipgloss.NewStyle().Foreground(ColorSecondary).Render(info.Tagline))
		out.WriteString("\n")
	}

	out.WriteString(lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("━", HeaderWidth)))
	out.WriteString("\n")
	return out.String()
}
