package ui

import (
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/tunnelup/internal/errors"
)

// Confirm asks a yes/no question on the terminal.
func Confirm(title string, def bool) (bool, error) {
	answer := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --yes to skip the confirmation")
	}
	return answer, nil
}

// SudoPassword asks for user's sudo password on host. It has the shape
// the privileged runner expects for its prompt.
func SudoPassword(user, host string) (string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("[sudo] password for %s@%s", user, host)).
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"No sudo password given",
			fmt.Sprintf("Configure passwordless sudo for %s or log in as root", user))
	}
	return password, nil
}
