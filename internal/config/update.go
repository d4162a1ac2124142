package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"gopkg.in/yaml.v3"
)

// knownKeys lists every dotted key accepted by Set.
var knownKeys = []string{
	"user", "tunnel_name", "admin_user", "port", "identity_file", "quality",
	"timeouts.connect", "timeouts.device_code", "timeouts.connection", "timeouts.poll_interval",
	"journal.lines",
	"output.color", "output.clipboard", "output.browser",
}

// KnownKeys returns the keys accepted by Set, sorted.
func KnownKeys() []string {
	keys := append([]string(nil), knownKeys...)
	sort.Strings(keys)
	return keys
}

// Set writes key=value into the config file at path, creating the file if
// needed. Existing structure and comments are preserved. The result is
// validated before it is written.
func Set(path, key, value string) error {
	if !isKnownKey(key) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown config key '%s'", key),
			"Known keys: "+strings.Join(KnownKeys(), ", "))
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte(fmt.Sprintf("version: %d\n", CurrentConfigVersion))
	}

	// Parse as yaml.Node to preserve structure
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse config file "+path,
			"Check the file is valid YAML")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return errors.New(errors.ErrConfig,
			"Expected a mapping at the top of "+path,
			"Fix or remove the file and try again")
	}

	node := root.Content[0]
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child := findMapValue(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, scalar(part), child)
		}
		node = child
	}
	leaf := parts[len(parts)-1]
	if existing := findMapValue(node, leaf); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = ""
		existing.Value = value
		existing.Content = nil
	} else {
		node.Content = append(node.Content, scalar(leaf), &yaml.Node{Kind: yaml.ScalarNode, Value: value})
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	// Validate the candidate before touching the real file.
	tmp, err := os.CreateTemp("", "tunnelup-config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to stage config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage config: %w", err)
	}
	tmp.Close()

	cfg, _, err := Load(tmp.Name())
	if err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// YAML renders the effective configuration. Durations are written in
// their string form so the output can be pasted back into the file.
func YAML(cfg *Config) ([]byte, error) {
	view := map[string]any{
		"version":       cfg.Version,
		"user":          cfg.User,
		"tunnel_name":   cfg.TunnelName,
		"admin_user":    cfg.AdminUser,
		"port":          cfg.Port,
		"identity_file": cfg.IdentityFile,
		"quality":       cfg.Quality,
		"timeouts": map[string]string{
			"connect":       cfg.Timeouts.Connect.String(),
			"device_code":   cfg.Timeouts.DeviceCode.String(),
			"connection":    cfg.Timeouts.Connection.String(),
			"poll_interval": cfg.Timeouts.PollInterval.String(),
		},
		"journal": map[string]int{"lines": cfg.Journal.Lines},
		"output": map[string]any{
			"color":     cfg.Output.Color,
			"clipboard": cfg.Output.Clipboard,
			"browser":   cfg.Output.Browser,
		},
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(view); err != nil {
		return nil, err
	}
	encoder.Close()
	return buf.Bytes(), nil
}

func isKnownKey(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
