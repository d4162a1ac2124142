package host

import (
	"sort"
	"sync"

	"github.com/rileyhilliard/tunnelup/pkg/sshutil"
)

// Sessions tracks the open connections of one run, keyed by login user,
// so every session is closed exactly once when the run ends.
type Sessions struct {
	mu    sync.Mutex
	conns map[string]sshutil.SSHClient
}

// NewSessions creates an empty session set.
func NewSessions() *Sessions {
	return &Sessions{conns: make(map[string]sshutil.SSHClient)}
}

// Get returns the session for user, or nil.
func (s *Sessions) Get(user string) sshutil.SSHClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[user]
}

// Set stores the session for user. An existing session for that user is
// closed and replaced.
func (s *Sessions) Set(user string, conn sshutil.SSHClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conns[user]; ok && existing != conn {
		existing.Close() //nolint:errcheck // Cleanup, error not actionable
	}
	s.conns[user] = conn
}

// Clear closes and forgets the session for user.
func (s *Sessions) Clear(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[user]; ok {
		conn.Close() //nolint:errcheck // Cleanup, error not actionable
		delete(s.conns, user)
	}
}

// CloseAll closes every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for user, conn := range s.conns {
		conn.Close() //nolint:errcheck // Cleanup, error not actionable
		delete(s.conns, user)
	}
}

// Users returns the login users with open sessions, sorted.
func (s *Sessions) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.conns))
	for u := range s.conns {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
