// Package util provides common utility functions used across the codebase.
package util

import (
	"fmt"
	"strings"
)

// HeredocMarker terminates heredoc bodies written by WriteHeredoc. Content
// containing this line on its own cannot be written.
const HeredocMarker = "TUNNELUP_EOF"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellJoin quotes each argument that needs it and joins them with spaces.
func ShellJoin(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`&;|<>()*?[]{}!#~") {
			quoted[i] = ShellQuote(a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

// WriteHeredoc renders a command that writes content to path verbatim using
// a quoted heredoc, so no expansion happens on the remote side. The file
// ends with exactly one newline.
func WriteHeredoc(path, content string) (string, error) {
	body := strings.TrimSuffix(content, "\n")
	for _, line := range strings.Split(body, "\n") {
		if line == HeredocMarker {
			return "", fmt.Errorf("content contains heredoc marker %q", HeredocMarker)
		}
	}
	return fmt.Sprintf("cat > %s << '%s'\n%s\n%s", ShellQuote(path), HeredocMarker, body, HeredocMarker), nil
}
