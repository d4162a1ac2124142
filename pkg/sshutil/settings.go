package sshutil

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// sshSettings is where and as whom a Dial connects, after ~/.ssh/config and
// Options have been layered over the host string.
type sshSettings struct {
	hostname     string
	port         string
	user         string
	identityFile string

	// encryptedKeys lists key files that were found but need a passphrase.
	encryptedKeys []string
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// apply overrides the resolved settings with any non-zero option.
func (s *sshSettings) apply(opts Options) {
	if opts.User != "" {
		s.user = opts.User
	}
	if opts.Port > 0 {
		s.port = strconv.Itoa(opts.Port)
	}
	if opts.IdentityFile != "" {
		s.identityFile = expandPath(opts.IdentityFile)
	}
}

// hostSpec is a host argument split into its parts. user and port are empty
// when the argument didn't name them.
type hostSpec struct {
	user string
	name string
	port string
}

// parseHostSpec accepts alias, host, user@host, host:port and user@host:port.
// A bare IPv6 address has more than one colon and is never split.
func parseHostSpec(arg string) hostSpec {
	var spec hostSpec
	if user, rest, ok := strings.Cut(arg, "@"); ok {
		spec.user, arg = user, rest
	}
	if strings.Count(arg, ":") == 1 {
		name, port, _ := strings.Cut(arg, ":")
		if _, err := strconv.Atoi(port); err == nil {
			spec.port, arg = port, name
		}
	}
	spec.name = arg
	return spec
}

// settingsFor resolves host and layers opts on top.
func settingsFor(host string, opts Options) *sshSettings {
	s := resolveSSHSettings(host)
	s.apply(opts)
	return s
}

var matchWarningOnce sync.Once

// resolveSSHSettings turns a host argument into connection settings.
// Explicit user@ and :port win over ~/.ssh/config; HostName and
// IdentityFile always come from the config when it sets them.
func resolveSSHSettings(arg string) *sshSettings {
	spec := parseHostSpec(arg)
	s := &sshSettings{hostname: spec.name, port: "22", user: currentUser()}

	lookup := func(string) string { return "" }
	forAlias, matchLine := loadSSHConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if forAlias != nil {
		lookup = forAlias(spec.name)
	}

	found := false
	take := func(key, explicit string, dst *string, conv func(string) string) {
		if explicit != "" {
			*dst = explicit
			return
		}
		if v := lookup(key); v != "" {
			*dst = conv(v)
			found = true
		}
	}
	same := func(v string) string { return v }

	take("HostName", "", &s.hostname, same)
	take("Port", spec.port, &s.port, same)
	take("User", spec.user, &s.user, same)
	take("IdentityFile", "", &s.identityFile, expandPath)

	if matchLine > 0 && !found {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"%s isn't in the usable part of ~/.ssh/config: entries after the Match block on line %d are ignored. "+
					"Move the Host entry above that line if it's defined there.",
				spec.name, matchLine))
		})
	}
	return s
}

// loadSSHConfig returns a key lookup for one host alias, or nil when the
// config is missing or unparseable. ssh_config can't evaluate Match, so
// everything from the first Match line on is dropped; matchLine reports it.
func loadSSHConfig(path string) (lookup func(alias string) func(key string) string, matchLine int) {
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		return nil, 0
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, matchLine
	}
	return func(alias string) func(string) string {
		return func(key string) string {
			v, _ := cfg.Get(alias, key)
			return v
		}
	}, matchLine
}

// preprocessSSHConfig reads an ssh config and cuts it before the first
// Match directive. matchLine is that directive's 1-based line, or 0.
func preprocessSSHConfig(path string) (content []byte, matchLine int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var kept bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && strings.EqualFold(fields[0], "match") {
			return kept.Bytes(), n, nil
		}
		kept.WriteString(sc.Text())
		kept.WriteByte('\n')
	}
	return kept.Bytes(), 0, sc.Err()
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "root"
}

// expandPath resolves a leading "~/" against the home directory.
func expandPath(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	return filepath.Join(homeDir(), rest)
}
