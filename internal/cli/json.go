package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/host"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
// Code is one of the internal/errors codes, or UNKNOWN.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Cause      string      `json:"cause,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ErrCodeUnknown marks errors that carry no code.
const ErrCodeUnknown = "UNKNOWN"

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: true,
		Data:    data,
	})
}

// WriteJSONFromError converts a Go error to a JSON error response. data,
// if not nil, is included so callers can report partial progress.
func WriteJSONFromError(w io.Writer, err error, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: false,
		Data:    data,
		Error:   ErrorToJSON(err),
	})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError. Probe failures anywhere
// in the chain add the categorized reason as details.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	out := &JSONError{Code: ErrCodeUnknown, Message: err.Error()}

	var tErr *errors.Error
	if stderrors.As(err, &tErr) {
		out.Code = tErr.Code
		out.Message = tErr.Message
		out.Suggestion = tErr.Suggestion
		if tErr.Cause != nil {
			out.Cause = tErr.Cause.Error()
		}
	}

	var probeErr *host.ProbeError
	if stderrors.As(err, &probeErr) {
		if out.Code == ErrCodeUnknown {
			out.Code = errors.ErrConnectivity
			out.Suggestion = probeErr.Hint()
		}
		out.Details = map[string]interface{}{
			"reason": probeErr.Reason.String(),
			"user":   probeErr.User,
			"host":   probeErr.Host,
		}
	}

	return out
}
