package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// notFoundPatterns capture the missing program's name from the messages
// bash, dash and sudo print. Most specific first.
var notFoundPatterns = compileAll(
	`bash: (\S+): command not found`,
	`sh: \d+: (\S+): not found`,
	`-bash: (\S+): No such file or directory`,
	`sudo: (\S+): command not found`,
	`(\S+): not found`,
	`(\S+): command not found`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// IsCommandNotFound reports whether a command failed because the shell
// couldn't find a program. That needs exit status 127; the name is empty
// when stderr doesn't say which program it was.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}
	for _, re := range notFoundPatterns {
		if m := re.FindStringSubmatch(stderr); m != nil {
			return m[1], true
		}
	}
	return "", true
}

// CommandFailed is the coded error for a remote command that exited
// non-zero. A missing program gets an install hint naming it; otherwise
// the first line of stderr becomes the suggestion.
func CommandFailed(code, message, cmd, stderr string, exitCode int) error {
	name, missing := IsCommandNotFound(stderr, exitCode)
	if !missing {
		detail := util.FirstLine(stderr)
		if detail == "" {
			detail = fmt.Sprintf("`%s` exited with status %d", cmd, exitCode)
		}
		return errors.New(code, message, detail)
	}

	if name == "" {
		name = "command"
		if fields := strings.Fields(cmd); len(fields) > 0 {
			name = fields[0]
		}
	}
	return errors.New(code,
		fmt.Sprintf("%s: '%s' isn't installed on the remote host", message, name),
		fmt.Sprintf("Install '%s' with the host's package manager and re-run", name))
}
