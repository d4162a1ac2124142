package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// ConfigHost is a concrete Host entry from ~/.ssh/config.
type ConfigHost struct {
	Alias    string
	Hostname string
	User     string
	Port     string
}

// Description summarizes the entry for shell completion.
func (h ConfigHost) Description() string {
	var parts []string
	if h.User != "" && h.Hostname != "" {
		parts = append(parts, h.User+"@"+h.Hostname)
	} else if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port "+h.Port)
	}
	return strings.Join(parts, ", ")
}

// ConfigHosts lists the concrete host aliases in ~/.ssh/config.
func ConfigHosts() ([]ConfigHost, error) {
	return ConfigHostsFile(filepath.Join(homeDir(), ".ssh", "config"))
}

// ConfigHostsFile lists the concrete host aliases in the given ssh config.
// Wildcard patterns are skipped; a missing file yields no hosts.
func ConfigHostsFile(path string) ([]ConfigHost, error) {
	content, _, err := preprocessSSHConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var hosts []ConfigHost
	seen := make(map[string]bool)
	for _, h := range cfg.Hosts {
		for _, pattern := range h.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry := ConfigHost{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")
			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}

// CompletionCandidates returns "alias\tdescription" pairs for aliases
// starting with prefix, in the format cobra's completion expects.
func CompletionCandidates(hosts []ConfigHost, prefix string) []string {
	var out []string
	for _, h := range hosts {
		if !strings.HasPrefix(h.Alias, prefix) {
			continue
		}
		if desc := h.Description(); desc != "" {
			out = append(out, h.Alias+"\t"+desc)
		} else {
			out = append(out, h.Alias)
		}
	}
	return out
}
