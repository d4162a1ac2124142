package testing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// SudoMode controls how the fake host answers sudo for non-root logins.
type SudoMode int

const (
	// SudoPasswordless lets sudo -n succeed.
	SudoPasswordless SudoMode = iota
	// SudoPassword requires the configured password on stdin (sudo -S).
	SudoPassword
	// SudoDenied rejects every sudo invocation.
	SudoDenied
)

// ScriptedLine is a journal line the tunnel service emits once it has been
// started and the journal has been read AfterReads times.
type ScriptedLine struct {
	AfterReads int
	Line       string
}

type journalEntry struct {
	at   int64
	unit string
	line string
}

type unitState struct {
	enabled bool
	active  bool
	starts  int
}

// MockClient simulates an SSH connection to a systemd-based Linux host.
// It understands the shell commands the provisioner issues and applies them
// to in-memory state: files, users, groups, units and the journal. Sudo is
// honored, so commands that need root fail for a plain login unless they are
// escalated. Connections made with As share the same host.
type MockClient struct {
	h       *fakeHost
	host    string
	address string
	user    string
	closed  bool
}

type fakeHost struct {
	mu       sync.Mutex
	fs       *MockFS
	commands map[string]CommandResponse // pattern -> response
	history  []string
	tty      []string

	arch          string
	tools         map[string]bool
	users         map[string]int
	groups        map[string]bool
	noUserGroups  bool
	members       map[string][]string
	passwords     map[string]bool
	sudo          SudoMode
	sudoPassword  string
	units         map[string]*unitState
	journal       []journalEntry
	script        []ScriptedLine
	pending       []ScriptedLine
	reads         int
	now           int64
	ipv4Route     bool
	downloadFails bool
	downloads     []string
}

// NewMockClient creates a fake x86_64 host logged in as root. The host has
// curl, wget, systemd and a "sudo" group, and no tunnel installed.
func NewMockClient(host string) *MockClient {
	h := &fakeHost{
		fs:        NewMockFS(),
		commands:  make(map[string]CommandResponse),
		arch:      "x86_64",
		tools:     make(map[string]bool),
		users:     map[string]int{"root": 0},
		groups:    map[string]bool{"root": true, "sudo": true},
		members:   make(map[string][]string),
		passwords: make(map[string]bool),
		units:     make(map[string]*unitState),
		now:       1700000000,
		ipv4Route: true,
	}
	for _, tool := range []string{"sh", "bash", "cat", "curl", "wget", "tar", "install", "systemctl", "journalctl", "useradd", "usermod", "passwd", "sudo"} {
		h.tools[tool] = true
	}
	_ = h.fs.MkdirAll("/root/.ssh")
	_ = h.fs.MkdirAll("/tmp")
	return &MockClient{h: h, host: host, address: host + ":22", user: "root"}
}

// As returns a new connection to the same fake host logged in as user. The
// account is created if it does not exist yet.
func (m *MockClient) As(user string) *MockClient {
	c := &MockClient{h: m.h, host: m.host, address: m.address, user: user}
	c.AddUser(user)
	return c
}

// Exec runs a command against the fake host.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.exec(cmd, nil, false)
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return m.stream(cmd, nil, stdout, stderr, false)
}

// ExecInteractive runs a command with stdin attached.
func (m *MockClient) ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	return m.stream(cmd, stdin, stdout, stderr, false)
}

// ExecTTY runs a command as if a PTY were attached. The command is recorded
// in TTYCommands.
func (m *MockClient) ExecTTY(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	return m.stream(cmd, stdin, stdout, stderr, true)
}

func (m *MockClient) stream(cmd string, stdin io.Reader, stdout, stderr io.Writer, tty bool) (int, error) {
	out, errOut, code, err := m.exec(cmd, stdin, tty)
	if err != nil {
		return -1, err
	}
	if stdout != nil && len(out) > 0 {
		_, _ = stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		_, _ = stderr.Write(errOut)
	}
	return code, nil
}

func (m *MockClient) exec(cmd string, stdin io.Reader, tty bool) ([]byte, []byte, int, error) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.h.history = append(m.h.history, cmd)
	if tty {
		m.h.tty = append(m.h.tty, cmd)
	}

	// Check for exact command matches first
	if resp, ok := m.h.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	// Check for pattern matches
	for pattern, resp := range m.h.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	var in *bufio.Reader
	if stdin != nil {
		in = bufio.NewReader(stdin)
	}
	out, errOut, code := m.run(cmd, in, m.user)
	return out, errOut, code, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// GetUser returns the login user.
func (m *MockClient) GetUser() string {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return m.user
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	m.h.commands[pattern] = resp
}

// GetFS returns the mock filesystem for direct manipulation in tests.
func (m *MockClient) GetFS() *MockFS {
	return m.h.fs
}

// run executes cmd as user, splitting && chains.
func (m *MockClient) run(cmd string, stdin *bufio.Reader, user string) ([]byte, []byte, int) {
	cmd = strings.TrimSpace(cmd)

	// Heredoc writes carry arbitrary content and are never chained.
	if strings.HasPrefix(cmd, "cat >") && strings.Contains(cmd, "<<") {
		return m.handleCatWrite(cmd, user)
	}

	var stdout []byte
	for _, part := range splitChain(cmd) {
		out, errOut, code := m.runOne(part, stdin, user)
		stdout = append(stdout, out...)
		if code != 0 {
			return stdout, errOut, code
		}
	}
	return stdout, nil, 0
}

func (m *MockClient) runOne(cmd string, stdin *bufio.Reader, user string) ([]byte, []byte, int) {
	args := stripRedirects(splitArgs(cmd))
	if len(args) == 0 {
		return nil, nil, 0
	}
	if args[0] != "sudo" && !m.toolAvailable(args[0]) {
		return nil, []byte(fmt.Sprintf("sh: 1: %s: not found\n", args[0])), 127
	}

	switch args[0] {
	case "sudo":
		return m.handleSudo(args[1:], stdin, user)
	case "true":
		return nil, nil, 0
	case "false":
		return nil, nil, 1
	case "id":
		return m.handleID(args[1:], user)
	case "getent":
		return m.handleGetent(args[1:])
	case "command", "which":
		return m.handleCommandV(args[1:])
	case "uname":
		return m.handleUname(args[1:])
	case "date":
		m.h.now++
		return []byte(fmt.Sprintf("%d\n", m.h.now)), nil, 0
	case "mkdir":
		return m.handleMkdir(args[1:], user)
	case "cat":
		return m.handleCatRead(args[1:])
	case "rm":
		return m.handleRm(args[1:], user)
	case "test", "[":
		return m.handleTest(args)
	case "useradd":
		return m.handleUseradd(args[1:], user)
	case "usermod":
		return m.handleUsermod(args[1:], user)
	case "passwd":
		return m.handlePasswd(args[1:], user)
	case "install":
		return m.handleInstall(args[1:], user)
	case "curl":
		return m.handleDownload(args[1:], "-o", 22)
	case "wget":
		return m.handleDownload(args[1:], "-O", 8)
	case "tar":
		return m.handleTar(args[1:], user)
	case "chmod":
		return m.handleChmod(args[1:], user)
	case "chown":
		return m.handleChown(args[1:], user)
	case "systemctl":
		return m.handleSystemctl(args[1:], user)
	case "journalctl":
		return m.handleJournalctl(args[1:])
	case "ip":
		return m.handleIP(args[1:])
	}

	if len(args) == 2 && args[1] == "--version" && m.h.fs.IsExecutable(args[0]) {
		return []byte("1.95.3\nf1a4fb101478ce6ec82fe9627c43efbf9e98c813\nx64\n"), nil, 0
	}

	// Unknown command - return success by default
	return nil, nil, 0
}

func (m *MockClient) toolAvailable(name string) bool {
	if strings.HasPrefix(name, "/") || name == "[" {
		return true
	}
	switch name {
	case "true", "false", "id", "getent", "command", "which", "uname", "date", "mkdir", "rm", "test", "chmod", "chown", "ip":
		return true
	}
	if on, ok := m.h.tools[name]; ok {
		return on
	}
	return true
}

func permissionDenied(what string) ([]byte, []byte, int) {
	return nil, []byte(what + ": Permission denied\n"), 1
}

func (m *MockClient) handleSudo(args []string, stdin *bufio.Reader, user string) ([]byte, []byte, int) {
	nonInteractive, fromStdin := false, false
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-n":
			nonInteractive = true
		case "-S":
			fromStdin = true
		case "-p":
			args = args[1:] // prompt value
		}
		args = args[1:]
	}

	if user != "root" {
		switch m.h.sudo {
		case SudoDenied:
			return nil, []byte(user + " is not in the sudoers file.\n"), 1
		case SudoPassword:
			if nonInteractive {
				return nil, []byte("sudo: a password is required\n"), 1
			}
			if fromStdin {
				if stdin == nil {
					return nil, []byte("sudo: no password was provided\n"), 1
				}
				line, _ := stdin.ReadString('\n')
				if strings.TrimRight(line, "\r\n") != m.h.sudoPassword {
					return nil, []byte("Sorry, try again.\nsudo: 1 incorrect password attempt\n"), 1
				}
			}
		}
	}

	if len(args) == 0 {
		return nil, []byte("usage: sudo command\n"), 1
	}
	if len(args) >= 3 && args[0] == "sh" && args[1] == "-c" {
		return m.run(args[2], stdin, "root")
	}
	return m.run(joinArgs(args), stdin, "root")
}

func (m *MockClient) handleID(args []string, user string) ([]byte, []byte, int) {
	name := user
	if len(args) > 0 && args[0] == "-u" {
		args = args[1:]
	}
	if len(args) > 0 {
		name = args[0]
	}
	uid, ok := m.h.users[name]
	if !ok {
		return nil, []byte(fmt.Sprintf("id: '%s': no such user\n", name)), 1
	}
	return []byte(fmt.Sprintf("%d\n", uid)), nil, 0
}

func homeFor(user string) string {
	if user == "root" {
		return "/root"
	}
	return "/home/" + user
}

func (m *MockClient) handleGetent(args []string) ([]byte, []byte, int) {
	if len(args) != 2 || args[0] != "passwd" {
		return nil, nil, 2
	}
	uid, ok := m.h.users[args[1]]
	if !ok {
		return nil, nil, 2
	}
	return []byte(fmt.Sprintf("%s:x:%d:%d::%s:/bin/bash\n", args[1], uid, uid, homeFor(args[1]))), nil, 0
}

func (m *MockClient) handleCommandV(args []string) ([]byte, []byte, int) {
	if len(args) > 0 && args[0] == "-v" {
		args = args[1:]
	}
	if len(args) == 0 {
		return nil, nil, 1
	}
	if on, ok := m.h.tools[args[0]]; ok && on {
		return []byte("/usr/bin/" + args[0] + "\n"), nil, 0
	}
	return nil, nil, 1
}

func (m *MockClient) handleUname(args []string) ([]byte, []byte, int) {
	flag := ""
	if len(args) > 0 {
		flag = args[0]
	}
	switch flag {
	case "-m":
		return []byte(m.h.arch + "\n"), nil, 0
	case "-r":
		return []byte("5.15.0-generic\n"), nil, 0
	case "-a":
		return []byte(fmt.Sprintf("Linux mockhost 5.15.0-generic #1 SMP %s GNU/Linux\n", m.h.arch)), nil, 0
	}
	return []byte("Linux\n"), nil, 0
}

// writable reports whether user may write below p.
func writable(user, p string) bool {
	if user == "root" {
		return true
	}
	return strings.HasPrefix(p, "/tmp/") || strings.HasPrefix(p, homeFor(user)+"/")
}

func (m *MockClient) handleMkdir(args []string, user string) ([]byte, []byte, int) {
	parents := false
	var paths []string
	for _, a := range args {
		if a == "-p" {
			parents = true
			continue
		}
		paths = append(paths, a)
	}
	if len(paths) == 0 {
		return nil, []byte("mkdir: missing operand"), 1
	}
	for _, p := range paths {
		if !writable(user, p) {
			return permissionDenied("mkdir: cannot create directory '" + p + "'")
		}
		if parents {
			_ = m.h.fs.MkdirAll(p)
			continue
		}
		parent := path.Dir(p)
		if parent != "/" && parent != "." && !m.h.fs.IsDir(parent) {
			return nil, []byte(fmt.Sprintf("mkdir: cannot create directory '%s': No such file or directory", p)), 1
		}
		if err := m.h.fs.Mkdir(p); err != nil {
			return nil, []byte("mkdir: cannot create directory: " + err.Error()), 1
		}
	}
	return nil, nil, 0
}

// handleCatWrite processes: cat > path << 'MARKER'\ncontent\nMARKER
func (m *MockClient) handleCatWrite(cmd, user string) ([]byte, []byte, int) {
	nl := strings.Index(cmd, "\n")
	if nl == -1 {
		return nil, []byte("cat: missing heredoc body"), 1
	}
	header, body := cmd[:nl], cmd[nl+1:]

	redirect := strings.TrimSpace(strings.TrimPrefix(header, "cat >"))
	heredocIdx := strings.Index(redirect, "<<")
	target := splitArgs(strings.TrimSpace(redirect[:heredocIdx]))
	markerArgs := splitArgs(strings.TrimSpace(redirect[heredocIdx+2:]))
	if len(target) == 0 || len(markerArgs) == 0 {
		return nil, []byte("cat: missing output file"), 1
	}
	marker := markerArgs[0]

	lines := strings.Split(body, "\n")
	var content []string
	for _, line := range lines {
		if line == marker {
			break
		}
		content = append(content, line)
	}
	text := strings.Join(content, "\n")
	if len(content) > 0 {
		text += "\n"
	}

	if !writable(user, target[0]) {
		return permissionDenied("sh: 1: cannot create " + target[0])
	}
	_ = m.h.fs.WriteFile(target[0], []byte(text))
	return nil, nil, 0
}

func (m *MockClient) handleCatRead(args []string) ([]byte, []byte, int) {
	if len(args) == 0 {
		return nil, []byte("cat: missing file operand"), 1
	}
	content, err := m.h.fs.ReadFile(args[0])
	if err != nil {
		return nil, []byte("cat: " + args[0] + ": No such file or directory\n"), 1
	}
	return content, nil, 0
}

func (m *MockClient) handleRm(args []string, user string) ([]byte, []byte, int) {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if !writable(user, a) {
			return permissionDenied("rm: cannot remove '" + a + "'")
		}
		_ = m.h.fs.Remove(a)
	}
	return nil, nil, 0
}

// handleTest processes: test -f|-d|-x|-e path, or the [ ... ] form.
func (m *MockClient) handleTest(args []string) ([]byte, []byte, int) {
	if args[0] == "[" && len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	if len(args) != 3 {
		return nil, nil, 2
	}
	var ok bool
	switch args[1] {
	case "-f":
		ok = m.h.fs.IsFile(args[2])
	case "-d":
		ok = m.h.fs.IsDir(args[2])
	case "-x":
		ok = m.h.fs.IsExecutable(args[2])
	case "-e":
		ok = m.h.fs.Exists(args[2])
	}
	if ok {
		return nil, nil, 0
	}
	return nil, nil, 1
}

func (m *MockClient) handleUseradd(args []string, user string) ([]byte, []byte, int) {
	if user != "root" {
		return nil, []byte("useradd: Permission denied.\n"), 1
	}
	if len(args) == 0 {
		return nil, []byte("Usage: useradd [options] LOGIN\n"), 2
	}
	name := args[len(args)-1]
	if _, exists := m.h.users[name]; exists {
		return nil, []byte(fmt.Sprintf("useradd: user '%s' already exists\n", name)), 9
	}
	m.h.users[name] = 1000 + len(m.h.users) - 1
	if !m.h.noUserGroups {
		m.h.groups[name] = true
	}
	for _, a := range args {
		if a == "-m" {
			_ = m.h.fs.MkdirAll(homeFor(name))
		}
	}
	return nil, nil, 0
}

func (m *MockClient) handleUsermod(args []string, user string) ([]byte, []byte, int) {
	if user != "root" {
		return nil, []byte("usermod: Permission denied.\n"), 1
	}
	if len(args) != 3 || args[0] != "-aG" {
		return nil, []byte("Usage: usermod [options] LOGIN\n"), 2
	}
	group, name := args[1], args[2]
	if !m.h.groups[group] {
		return nil, []byte(fmt.Sprintf("usermod: group '%s' does not exist\n", group)), 6
	}
	if _, ok := m.h.users[name]; !ok {
		return nil, []byte(fmt.Sprintf("usermod: user '%s' does not exist\n", name)), 6
	}
	m.h.members[name] = append(m.h.members[name], group)
	return nil, nil, 0
}

func (m *MockClient) handlePasswd(args []string, user string) ([]byte, []byte, int) {
	name := user
	if len(args) > 0 {
		name = args[len(args)-1]
	}
	if name != user && user != "root" {
		return nil, []byte("passwd: You may not view or modify password information for " + name + ".\n"), 1
	}
	if _, ok := m.h.users[name]; !ok {
		return nil, []byte(fmt.Sprintf("passwd: user '%s' does not exist\n", name)), 1
	}
	m.h.passwords[name] = true
	return []byte("passwd: password updated successfully\n"), nil, 0
}

// handleInstall processes: install [-d] [-m mode] [-o owner] [-g group] src... dst
func (m *MockClient) handleInstall(args []string, user string) ([]byte, []byte, int) {
	dirMode := false
	mode := int64(0755)
	var operands []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-d":
			dirMode = true
		case "-m":
			if i+1 < len(args) {
				mode, _ = strconv.ParseInt(args[i+1], 8, 32)
				i++
			}
		case "-o", "-g":
			if i+1 < len(args) {
				if stderr, code := m.checkOwner(args[i], args[i+1]); code != 0 {
					return nil, stderr, code
				}
			}
			i++
		default:
			operands = append(operands, args[i])
		}
	}

	if dirMode {
		for _, d := range operands {
			if !writable(user, d) {
				return permissionDenied("install: cannot create directory '" + d + "'")
			}
			_ = m.h.fs.MkdirAll(d)
		}
		return nil, nil, 0
	}

	if len(operands) != 2 {
		return nil, []byte("install: missing destination file operand\n"), 1
	}
	src, dst := operands[0], operands[1]
	content, err := m.h.fs.ReadFile(src)
	if err != nil {
		return nil, []byte(fmt.Sprintf("install: cannot stat '%s': No such file or directory\n", src)), 1
	}
	if !writable(user, dst) {
		return permissionDenied("install: cannot create regular file '" + dst + "'")
	}
	_ = m.h.fs.WriteFile(dst, content)
	_ = m.h.fs.Chmod(dst, fsMode(mode))
	return nil, nil, 0
}

// handleDownload processes curl -fsSL -o path url and wget -q -O path url.
func (m *MockClient) handleDownload(args []string, outFlag string, failCode int) ([]byte, []byte, int) {
	var out, url string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == outFlag && i+1 < len(args):
			out = args[i+1]
			i++
		case !strings.HasPrefix(args[i], "-"):
			url = args[i]
		}
	}
	m.h.downloads = append(m.h.downloads, url)
	if m.h.downloadFails {
		return nil, []byte("The requested URL returned error: 404\n"), failCode
	}
	if out == "" {
		return []byte("tarball:" + url), nil, 0
	}
	_ = m.h.fs.WriteFile(out, []byte("tarball:"+url))
	return nil, nil, 0
}

// handleTar processes: tar -xzf archive -C dir member
func (m *MockClient) handleTar(args []string, user string) ([]byte, []byte, int) {
	var archive, dir string
	var members []string
	for i := 0; i < len(args); i++ {
		switch {
		case strings.HasPrefix(args[i], "-x") && strings.HasSuffix(args[i], "f") && i+1 < len(args):
			archive = args[i+1]
			i++
		case args[i] == "-C" && i+1 < len(args):
			dir = args[i+1]
			i++
		default:
			members = append(members, args[i])
		}
	}
	content, err := m.h.fs.ReadFile(archive)
	if err != nil || !strings.HasPrefix(string(content), "tarball:") {
		return nil, []byte("tar: This does not look like a tar archive\n"), 2
	}
	if dir == "" {
		dir = "."
	}
	if !writable(user, dir+"/") {
		return permissionDenied("tar: " + dir)
	}
	for _, member := range members {
		p := path.Join(dir, member)
		_ = m.h.fs.WriteFile(p, []byte("#!vscode-cli\n"))
		_ = m.h.fs.Chmod(p, 0755)
	}
	return nil, nil, 0
}

// checkOwner validates the value of install -o or -g.
func (m *MockClient) checkOwner(flag, value string) ([]byte, int) {
	if flag == "-o" {
		if _, ok := m.h.users[value]; !ok {
			return []byte(fmt.Sprintf("install: invalid user '%s'\n", value)), 1
		}
		return nil, 0
	}
	if !m.h.groups[value] {
		return []byte(fmt.Sprintf("install: invalid group '%s'\n", value)), 1
	}
	return nil, 0
}

// handleChown processes: chown [-R] owner[:[group]] path... Ownership isn't
// tracked; only the names and paths are checked. "owner:" means the owner's
// login group, which always exists.
func (m *MockClient) handleChown(args []string, user string) ([]byte, []byte, int) {
	if user != "root" {
		return permissionDenied("chown")
	}
	if len(args) > 0 && args[0] == "-R" {
		args = args[1:]
	}
	if len(args) < 2 {
		return nil, []byte("chown: missing operand\n"), 1
	}
	owner, group, _ := strings.Cut(args[0], ":")
	if _, ok := m.h.users[owner]; !ok {
		return nil, []byte(fmt.Sprintf("chown: invalid user: '%s'\n", args[0])), 1
	}
	if group != "" && !m.h.groups[group] {
		return nil, []byte(fmt.Sprintf("chown: invalid group: '%s'\n", args[0])), 1
	}
	for _, p := range args[1:] {
		if !m.h.fs.Exists(p) {
			return nil, []byte(fmt.Sprintf("chown: cannot access '%s': No such file or directory\n", p)), 1
		}
	}
	return nil, nil, 0
}

func (m *MockClient) handleChmod(args []string, user string) ([]byte, []byte, int) {
	if len(args) != 2 {
		return nil, []byte("chmod: missing operand\n"), 1
	}
	if !writable(user, args[1]) {
		return permissionDenied("chmod: changing permissions of '" + args[1] + "'")
	}
	mode, err := strconv.ParseInt(args[0], 8, 32)
	if err != nil {
		return nil, []byte("chmod: invalid mode: '" + args[0] + "'\n"), 1
	}
	if err := m.h.fs.Chmod(args[1], fsMode(mode)); err != nil {
		return nil, []byte(fmt.Sprintf("chmod: cannot access '%s': No such file or directory\n", args[1])), 1
	}
	return nil, nil, 0
}

func unitPath(unit string) string {
	return "/etc/systemd/system/" + unit
}

func (m *MockClient) unit(name string) *unitState {
	u, ok := m.h.units[name]
	if !ok {
		u = &unitState{}
		m.h.units[name] = u
	}
	return u
}

func (m *MockClient) handleSystemctl(args []string, user string) ([]byte, []byte, int) {
	if len(args) == 0 {
		return nil, nil, 1
	}
	verb := args[0]
	var unit string
	now := false
	for _, a := range args[1:] {
		if a == "--now" {
			now = true
			continue
		}
		if !strings.HasPrefix(a, "-") {
			unit = a
		}
	}

	switch verb {
	case "is-active":
		if u, ok := m.h.units[unit]; ok && u.active {
			return []byte("active\n"), nil, 0
		}
		return []byte("inactive\n"), nil, 3
	case "is-enabled":
		if u, ok := m.h.units[unit]; ok && u.enabled && m.h.fs.IsFile(unitPath(unit)) {
			return []byte("enabled\n"), nil, 0
		}
		if m.h.fs.IsFile(unitPath(unit)) {
			return []byte("disabled\n"), nil, 1
		}
		return []byte("not-found\n"), nil, 4
	}

	if user != "root" {
		return nil, []byte("Failed to " + verb + " " + unit + ": Access denied\n"), 1
	}

	switch verb {
	case "daemon-reload":
		return nil, nil, 0
	case "enable":
		if !m.h.fs.IsFile(unitPath(unit)) {
			return nil, []byte(fmt.Sprintf("Failed to enable unit: Unit file %s does not exist.\n", unit)), 1
		}
		m.unit(unit).enabled = true
		if now {
			m.startUnit(unit)
		}
		return nil, nil, 0
	case "disable":
		if u, ok := m.h.units[unit]; ok {
			u.enabled = false
			if now {
				u.active = false
			}
		}
		return nil, nil, 0
	case "stop":
		u, ok := m.h.units[unit]
		if !ok || !m.h.fs.IsFile(unitPath(unit)) {
			return nil, []byte(fmt.Sprintf("Failed to stop %s: Unit %s not loaded.\n", unit, unit)), 5
		}
		u.active = false
		return nil, nil, 0
	case "start", "restart":
		if !m.h.fs.IsFile(unitPath(unit)) {
			return nil, []byte(fmt.Sprintf("Failed to start %s: Unit %s not found.\n", unit, unit)), 5
		}
		m.startUnit(unit)
		return nil, nil, 0
	}
	return nil, nil, 0
}

func (m *MockClient) startUnit(unit string) {
	u := m.unit(unit)
	u.active = m.h.fs.IsExecutable("/usr/local/bin/code")
	u.starts++
	m.h.now++
	m.h.reads = 0
	m.h.pending = append([]ScriptedLine(nil), m.h.script...)
}

// handleJournalctl processes: journalctl -u unit [--since @epoch] [-n lines] ...
func (m *MockClient) handleJournalctl(args []string) ([]byte, []byte, int) {
	unit := ""
	since := int64(0)
	limit := 10
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			break
		}
		switch args[i] {
		case "-u":
			unit = args[i+1]
			i++
		case "--since":
			since, _ = strconv.ParseInt(strings.TrimPrefix(args[i+1], "@"), 10, 64)
			i++
		case "-n":
			limit, _ = strconv.Atoi(args[i+1])
			i++
		case "-o":
			i++
		}
	}

	m.h.reads++
	var still []ScriptedLine
	for _, s := range m.h.pending {
		if s.AfterReads <= m.h.reads {
			m.h.journal = append(m.h.journal, journalEntry{at: m.h.now, unit: unit, line: s.Line})
		} else {
			still = append(still, s)
		}
	}
	m.h.pending = still

	var lines []string
	for _, e := range m.h.journal {
		if (unit == "" || e.unit == unit) && e.at >= since {
			lines = append(lines, e.line)
		}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	if len(lines) == 0 {
		return []byte("-- No entries --\n"), nil, 0
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil, 0
}

func (m *MockClient) handleIP(args []string) ([]byte, []byte, int) {
	if joinArgs(args) == "-4 route show default" && m.h.ipv4Route {
		return []byte("default via 10.0.0.1 dev eth0 proto dhcp metric 100\n"), nil, 0
	}
	return nil, nil, 0
}

// splitChain splits a command on top-level && operators, respecting quotes.
func splitChain(cmd string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\\':
			i++
		case c == '\'' || c == '"':
			quote = c
		case c == '&' && i+1 < len(cmd) && cmd[i+1] == '&':
			parts = append(parts, strings.TrimSpace(cmd[start:i]))
			start = i + 2
			i++
		}
	}
	return append(parts, strings.TrimSpace(cmd[start:]))
}

// splitArgs tokenizes a POSIX shell word list, handling single quotes,
// double quotes and backslash escapes.
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	inWord := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				cur.WriteString(s[i+1:])
				i = len(s)
			} else {
				cur.WriteString(s[i+1 : i+1+end])
				i += end + 1
			}
			inWord = true
		case c == '\\' && i+1 < len(s):
			cur.WriteByte(s[i+1])
			i++
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}

func stripRedirects(args []string) []string {
	out := args[:0:0]
	for _, a := range args {
		switch a {
		case "2>/dev/null", "2>&1", ">/dev/null", "1>/dev/null":
			continue
		}
		out = append(out, a)
	}
	return out
}

func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"&;|") {
			quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fsMode(mode int64) os.FileMode {
	return os.FileMode(mode) & os.ModePerm
}
