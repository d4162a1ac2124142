// Package arch maps a remote machine architecture to a VS Code CLI download.
package arch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
)

// DownloadBase is the VS Code update service endpoint.
const DownloadBase = "https://code.visualstudio.com/sha/download"

// Target is a supported download target such as "x64".
type Target string

const (
	X64   Target = "x64"
	ARM64 Target = "arm64"
	ARMHF Target = "armhf"
)

var targets = map[string]Target{
	"x86_64":  X64,
	"aarch64": ARM64,
	"armv7l":  ARMHF,
}

// Resolve maps the output of `uname -m` to a download target. Unknown
// architectures fail with ErrUnsupportedArch; the caller must not retry.
func Resolve(raw string) (Target, error) {
	machine := strings.TrimSpace(raw)
	if t, ok := targets[machine]; ok {
		return t, nil
	}
	return "", errors.New(errors.ErrUnsupportedArch,
		fmt.Sprintf("Unsupported architecture: %q", machine),
		"The VS Code CLI ships for x86_64, aarch64 and armv7l only")
}

// OS returns the value of the download's os parameter.
func (t Target) OS() string {
	return "cli-alpine-" + string(t)
}

// URL returns the download URL of the CLI archive for this target and
// quality (stable or insider).
func (t Target) URL(quality string) string {
	q := url.Values{}
	q.Set("build", quality)
	q.Set("os", t.OS())
	return DownloadBase + "?" + q.Encode()
}

// Supported lists the raw architectures Resolve accepts.
func Supported() []string {
	return []string{"x86_64", "aarch64", "armv7l"}
}
