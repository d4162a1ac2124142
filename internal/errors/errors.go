// Package errors carries tunnelup's failure taxonomy: every error that ends
// a run has a code, a one-line message and, where there is one, a fix.
package errors

import (
	"errors"
	"strings"
)

// Codes. Each one ends the run; nothing is retried on any of them.
const (
	ErrConfig = "CONFIG"
	ErrSSH    = "SSH"
	ErrExec   = "EXEC"

	ErrValidation      = "VALIDATION"
	ErrConnectivity    = "CONNECTIVITY"
	ErrUnsupportedArch = "UNSUPPORTED_ARCH"
	ErrNoDownloader    = "NO_DOWNLOADER"
	ErrInstall         = "INSTALL_FAILED"
	ErrUserCreation    = "USER_CREATION_FAILED"
	ErrServiceConfig   = "SERVICE_CONFIG"
	ErrAuthTimeout     = "AUTH_TIMEOUT"
	ErrConnectTimeout  = "CONNECT_TIMEOUT"
)

// Error is a coded failure. Its text reads top to bottom as what failed,
// the underlying cause, then what to do:
//
//	✗ Can't reach 'box' as vscode or root
//
//	  dial tcp 10.0.0.5:22: i/o timeout
//
//	  Make sure the host is reachable: ping box
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

func New(code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion}
}

// Wrap attaches message to err under ErrSSH, the code for transport trouble.
func Wrap(err error, message string) *Error {
	return WrapWithCode(err, ErrSSH, message, "")
}

func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion, Cause: err}
}

func (e *Error) Error() string {
	parts := []string{"✗ " + e.Message}
	if e.Cause != nil {
		parts = append(parts, "  "+e.Cause.Error())
	}
	if e.Suggestion != "" {
		parts = append(parts, "  "+e.Suggestion)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ExitCode is 0 for success and 1 for any failure. Scripts that need the
// class read the code from --json output.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
