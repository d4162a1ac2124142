package logpoll

import (
	"regexp"
	"strings"
	"time"
)

// AuthEvent is a device code the tunnel asked the operator to enter.
type AuthEvent struct {
	DeviceCode string
	LoginURL   string
	ObservedAt time.Time
}

// ConnectionEvent means the tunnel is registered and reachable.
type ConnectionEvent struct {
	URL string
	// Markers lists every heuristic keyword seen in the window.
	Markers []string
	// Heuristic is set when no tunnel URL was logged and the event rests
	// on keywords alone.
	Heuristic  bool
	ObservedAt time.Time
}

// Match is the result of a successful poll. At least one event is set;
// both are when a Merged matcher saw a code and a connection together.
type Match struct {
	Auth       *AuthEvent
	Connection *ConnectionEvent
	// Fetches is how many times the source was read.
	Fetches int
}

func (m *Match) stamp(t time.Time) {
	if m.Auth != nil {
		m.Auth.ObservedAt = t
	}
	if m.Connection != nil {
		m.Connection.ObservedAt = t
	}
}

// Matcher looks for an event in a log window.
type Matcher interface {
	Match(window string) (Match, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(window string) (Match, bool)

// Match calls f.
func (f MatcherFunc) Match(window string) (Match, bool) {
	return f(window)
}

var (
	deviceCodeRe = regexp.MustCompile(`\b[A-Z0-9]{4}-[A-Z0-9]{4}\b`)
	urlRe        = regexp.MustCompile(`https?://[^\s"'<>]+`)
	tunnelURLRe  = regexp.MustCompile(`https://vscode\.dev/tunnel/[A-Za-z0-9_-]+(?:/[^\s"'<>]*)?`)
	markerRe     = regexp.MustCompile(`(?i)\b(connected|listening|ready)\b`)
)

// DeviceCodeMatcher finds the newest "use code XXXX-XXXX" line.
type DeviceCodeMatcher struct{}

// Match implements Matcher.
func (DeviceCodeMatcher) Match(window string) (Match, bool) {
	lines := strings.Split(window, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(strings.ToLower(line), "use code") {
			continue
		}
		code := deviceCodeRe.FindString(line)
		if code == "" {
			continue
		}
		event := &AuthEvent{DeviceCode: code}
		if u := urlRe.FindString(line); u != "" {
			event.LoginURL = strings.TrimRight(u, ".,")
		}
		return Match{Auth: event}, true
	}
	return Match{}, false
}

// ConnectionMatcher detects a connected tunnel. A logged tunnel URL is
// authoritative. Without one, any of "connected", "listening" or "ready"
// counts, but the event is flagged Heuristic and carries every marker seen
// so the caller can report the ambiguity.
type ConnectionMatcher struct {
	// Tunnel restricts authoritative URLs to this tunnel name and builds
	// the URL for heuristic matches.
	Tunnel string
	// Strict ignores keyword markers and only accepts a tunnel URL.
	Strict bool
}

// Match implements Matcher.
func (c ConnectionMatcher) Match(window string) (Match, bool) {
	markers := seenMarkers(window)

	for _, u := range tunnelURLRe.FindAllString(window, -1) {
		u = strings.TrimRight(u, ".,")
		if c.Tunnel == "" || tunnelName(u) == c.Tunnel {
			return Match{Connection: &ConnectionEvent{URL: u, Markers: markers}}, true
		}
	}

	if c.Strict || len(markers) == 0 {
		return Match{}, false
	}
	event := &ConnectionEvent{Markers: markers, Heuristic: true}
	if c.Tunnel != "" {
		event.URL = "https://vscode.dev/tunnel/" + c.Tunnel
	}
	return Match{Connection: event}, true
}

func tunnelName(u string) string {
	rest := strings.TrimPrefix(u, "https://vscode.dev/tunnel/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func seenMarkers(window string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range markerRe.FindAllString(window, -1) {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Merged runs every matcher over the window and keeps each event found.
// It matches when any of them does. An event already set by an earlier
// matcher is not replaced.
func Merged(matchers ...Matcher) Matcher {
	return MatcherFunc(func(window string) (Match, bool) {
		var out Match
		found := false
		for _, m := range matchers {
			match, ok := m.Match(window)
			if !ok {
				continue
			}
			found = true
			if out.Auth == nil {
				out.Auth = match.Auth
			}
			if out.Connection == nil {
				out.Connection = match.Connection
			}
		}
		return out, found
	})
}
