package cli

import (
	stderrors "errors"
	"os"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/host"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/ui"
)

// dial opens SSH sessions; tests swap it for a mock.
var dial host.Dialer = host.DialSSH

// connectRoot logs in to hostArg as the admin user and returns a runner
// that escalates to root. The caller closes the runner's client.
func connectRoot(cfg *config.Config, hostArg string) (*exec.Runner, error) {
	target := config.Target{
		Host:         hostArg,
		Port:         cfg.Port,
		IdentityFile: config.ExpandTilde(cfg.IdentityFile),
	}
	client, _, err := host.Probe(dial, target, cfg.AdminUser, cfg.Timeouts.Connect)
	if err != nil {
		var pe *host.ProbeError
		if stderrors.As(err, &pe) {
			return nil, pe.AsError()
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity, "Can't log in to "+hostArg, "")
	}

	runner, err := exec.NewRunner(client, passwordPrompt(), commandLogger())
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return runner, nil
}

// passwordPrompt asks for a sudo password on the terminal, or returns nil
// when nobody is there to answer.
func passwordPrompt() exec.PasswordPrompt {
	if !interactive() {
		return nil
	}
	return ui.SudoPassword
}

// commandLogger prints warnings, and everything with --verbose or
// TUNNELUP_DEBUG.
func commandLogger() logger.Logger {
	return logger.New(os.Stderr, "[tunnelup]", logger.LevelWarn)
}
