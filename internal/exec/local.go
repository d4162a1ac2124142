package exec

import (
	"os/exec"
	"runtime"

	"github.com/rileyhilliard/tunnelup/internal/errors"
)

// BrowserCommand returns the local command that opens url in the default
// browser on goos, or false when the platform has none.
func BrowserCommand(goos, url string) (string, []string, bool) {
	switch goos {
	case "darwin":
		return "open", []string{url}, true
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, true
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, true
	}
	return "", nil, false
}

// OpenURL opens url in the local browser without waiting for it to exit.
func OpenURL(url string) error {
	name, args, ok := BrowserCommand(runtime.GOOS, url)
	if !ok {
		return errors.New(errors.ErrExec,
			"Don't know how to open a browser on "+runtime.GOOS,
			"Open "+url+" manually")
	}

	command := exec.Command(name, args...)
	if err := command.Start(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't open the browser",
			"Open "+url+" manually")
	}
	// Reap the child; its exit status is irrelevant.
	go func() { _ = command.Wait() }()
	return nil
}
