package testing

import "sort"

// WithFiles pre-populates the mock filesystem with files.
// Keys are paths, values are file contents.
func WithFiles(client *MockClient, files map[string]string) {
	for path, content := range files {
		_ = client.GetFS().WriteFile(path, []byte(content))
	}
}

// WithDirs pre-populates the mock filesystem with directories.
func WithDirs(client *MockClient, dirs []string) {
	for _, dir := range dirs {
		_ = client.GetFS().MkdirAll(dir)
	}
}

// SetLoginUser makes the connection authenticate as user, creating the
// account and its home directory if needed.
func (m *MockClient) SetLoginUser(user string) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.user = user
	m.addUser(user)
}

// AddUser creates an account with a home directory.
func (m *MockClient) AddUser(user string) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.addUser(user)
}

func (m *MockClient) addUser(user string) {
	if _, ok := m.h.users[user]; ok {
		return
	}
	m.h.users[user] = 1000 + len(m.h.users) - 1
	if !m.h.noUserGroups {
		m.h.groups[user] = true
	}
	_ = m.h.fs.MkdirAll(homeFor(user))
}

// SetArch sets what uname -m reports.
func (m *MockClient) SetArch(arch string) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.arch = arch
}

// SetTool installs or removes a command on the fake host.
func (m *MockClient) SetTool(name string, present bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.tools[name] = present
}

// SetGroup creates or removes a group.
func (m *MockClient) SetGroup(name string, present bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.groups[name] = present
}

// SetUserGroups controls whether useradd creates a group named after each
// new user (USERGROUPS_ENAB in login.defs). It is on by default.
func (m *MockClient) SetUserGroups(enabled bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.noUserGroups = !enabled
}

// SetSudo configures sudo for non-root logins.
func (m *MockClient) SetSudo(mode SudoMode, password string) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.sudo = mode
	m.h.sudoPassword = password
}

// SetServiceScript sets the journal lines the tunnel emits after each start.
func (m *MockClient) SetServiceScript(lines ...ScriptedLine) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.script = append([]ScriptedLine(nil), lines...)
}

// AppendJournal adds a line for unit that was logged ageSeconds ago.
func (m *MockClient) AppendJournal(unit, line string, ageSeconds int64) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.journal = append(m.h.journal, journalEntry{at: m.h.now - ageSeconds, unit: unit, line: line})
}

// SetIPv4Route controls whether the host reports an IPv4 default route.
func (m *MockClient) SetIPv4Route(present bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.ipv4Route = present
}

// FailDownloads makes curl and wget fail as if the server returned 404.
func (m *MockClient) FailDownloads(fail bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.downloadFails = fail
}

// Commands returns every command executed so far, in order.
func (m *MockClient) Commands() []string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return append([]string(nil), m.h.history...)
}

// TTYCommands returns the commands that were run with a PTY.
func (m *MockClient) TTYCommands() []string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return append([]string(nil), m.h.tty...)
}

// ResetCommands clears the command history.
func (m *MockClient) ResetCommands() {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.history = nil
	m.h.tty = nil
}

// Downloads returns every URL curl or wget was asked to fetch.
func (m *MockClient) Downloads() []string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return append([]string(nil), m.h.downloads...)
}

// Users returns the account names on the host, sorted.
func (m *MockClient) Users() []string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return sortedKeys(m.h.users)
}

// UserExists reports whether the account exists.
func (m *MockClient) UserExists(user string) bool {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	_, ok := m.h.users[user]
	return ok
}

// Groups returns the supplementary groups user was added to.
func (m *MockClient) Groups(user string) []string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	groups := append([]string(nil), m.h.members[user]...)
	sort.Strings(groups)
	return groups
}

// HasPassword reports whether passwd ran for user.
func (m *MockClient) HasPassword(user string) bool {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return m.h.passwords[user]
}

// UnitActive reports whether the unit is running.
func (m *MockClient) UnitActive(unit string) bool {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	u, ok := m.h.units[unit]
	return ok && u.active
}

// UnitEnabled reports whether the unit is enabled.
func (m *MockClient) UnitEnabled(unit string) bool {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	u, ok := m.h.units[unit]
	return ok && u.enabled
}

// UnitStarts returns how many times the unit was started.
func (m *MockClient) UnitStarts(unit string) int {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	if u, ok := m.h.units[unit]; ok {
		return u.starts
	}
	return 0
}
