package setup

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeyInfo is a local SSH key pair.
type KeyInfo struct {
	Path       string
	Type       string // ed25519, ecdsa or rsa
	PublicPath string
	HasPublic  bool
}

// standardKeys are the default key files, best first.
var standardKeys = []struct{ file, kind string }{
	{"id_ed25519", "ed25519"},
	{"id_ecdsa", "ecdsa"},
	{"id_rsa", "rsa"},
}

// FindKeys lists the standard private keys present in sshDir, best first.
func FindKeys(sshDir string) []KeyInfo {
	var found []KeyInfo
	for _, k := range standardKeys {
		priv := filepath.Join(sshDir, k.file)
		if _, err := os.Stat(priv); err != nil {
			continue
		}
		info := KeyInfo{Path: priv, Type: k.kind, PublicPath: priv + ".pub"}
		if _, err := os.Stat(info.PublicPath); err == nil {
			info.HasPublic = true
		}
		found = append(found, info)
	}
	return found
}

// FindLocalKeys is FindKeys on ~/.ssh.
func FindLocalKeys() []KeyInfo {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return FindKeys(filepath.Join(home, ".ssh"))
}

// PreferredKey is the first key whose public half exists, or nil.
func PreferredKey(keys []KeyInfo) *KeyInfo {
	for i := range keys {
		if keys[i].HasPublic {
			return &keys[i]
		}
	}
	return nil
}

// KeyHint tells the operator how to get key-based access to user@host after
// an authentication failure.
func KeyHint(keys []KeyInfo, user, host string) string {
	target := host
	if user != "" {
		target = user + "@" + host
	}
	key := PreferredKey(keys)
	if key == nil {
		return fmt.Sprintf("No SSH key found in ~/.ssh. Create one with `ssh-keygen -t ed25519`, then run `ssh-copy-id %s`", target)
	}
	return fmt.Sprintf("Authorize your key on the host: ssh-copy-id -i %s %s", key.PublicPath, target)
}
