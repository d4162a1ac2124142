package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]string{"url": "https://vscode.dev/tunnel/box1"}))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, true, env["success"])
	assert.Equal(t, map[string]interface{}{"url": "https://vscode.dev/tunnel/box1"}, env["data"])
	assert.NotContains(t, env, "error")
}

func TestWriteJSONFromError_KeepsPartialData(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(errors.ErrAuthTimeout, "No device code within 1m0s", "Check the log")
	require.NoError(t, WriteJSONFromError(&buf, err, map[string]string{"state": "Failed"}))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTH_TIMEOUT", env.Error.Code)
	assert.Equal(t, "No device code within 1m0s", env.Error.Message)
	assert.Equal(t, "Check the log", env.Error.Suggestion)
	assert.Equal(t, map[string]interface{}{"state": "Failed"}, env.Data)
}

func TestErrorToJSON(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ErrorToJSON(nil))
	})

	t.Run("plain error", func(t *testing.T) {
		got := ErrorToJSON(fmt.Errorf("boom"))
		assert.Equal(t, ErrCodeUnknown, got.Code)
		assert.Equal(t, "boom", got.Message)
	})

	t.Run("coded error with cause", func(t *testing.T) {
		err := errors.WrapWithCode(fmt.Errorf("exit 1"), errors.ErrInstall, "Download failed", "Retry")
		got := ErrorToJSON(err)
		assert.Equal(t, "INSTALL_FAILED", got.Code)
		assert.Equal(t, "exit 1", got.Cause)
	})

	t.Run("probe error", func(t *testing.T) {
		pe := &host.ProbeError{Host: "box1", User: "vscode", Reason: host.ProbeFailRefused, Cause: fmt.Errorf("connection refused")}

		got := ErrorToJSON(pe.AsError())
		assert.Equal(t, "CONNECTIVITY", got.Code)
		assert.Equal(t, "Can't log in to box1 as vscode: connection refused", got.Message)
		assert.Equal(t, map[string]interface{}{
			"reason": "connection refused",
			"user":   "vscode",
			"host":   "box1",
		}, got.Details)
	})

	t.Run("bare probe error", func(t *testing.T) {
		pe := &host.ProbeError{Host: "box1", User: "root", Reason: host.ProbeFailTimeout}

		got := ErrorToJSON(pe)
		assert.Equal(t, "CONNECTIVITY", got.Code)
		assert.Equal(t, pe.Hint(), got.Suggestion)
	})
}
