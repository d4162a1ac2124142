package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/converge"
	"github.com/rileyhilliard/tunnelup/internal/logpoll"
	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/rileyhilliard/tunnelup/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	ui.DisableColors()
	m.Run()
}

func newTestProgress(buf *bytes.Buffer) *progress {
	p := newProgress(ui.NewPhaseDisplay(buf, false), false)
	p.copyFn = func(string) error { return nil }
	p.openFn = func(string) error { return nil }
	return p
}

func move(p *progress, from, to workflow.State) {
	p.transition(workflow.Transition{From: from, To: to})
}

func TestProgress_FreshInstall(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)

	move(p, workflow.StateInit, workflow.StateConnectivityCheck)
	move(p, workflow.StateConnectivityCheck, workflow.StateConverge)
	p.action(converge.Action{Kind: converge.WriteUnitFile, Reason: "missing"})
	move(p, workflow.StateConverge, workflow.StateServiceStart)
	move(p, workflow.StateServiceStart, workflow.StateAwaitDeviceCode)
	p.auth(logpoll.AuthEvent{DeviceCode: "AB12-CD34", LoginURL: "https://github.com/login/device"})
	move(p, workflow.StateAwaitDeviceCode, workflow.StateAwaitConnection)
	move(p, workflow.StateAwaitConnection, workflow.StateDone)

	out := buf.String()
	for _, want := range []string{
		"● Connecting",
		"● Installing",
		"  ● " + converge.WriteUnitFile.String() + " (missing)",
		"● Starting tunnel",
		"● Waiting for device code",
		"AB12-CD34",
		"https://github.com/login/device",
		"● Waiting for sign-in",
	} {
		assert.Contains(t, out, want)
	}
}

func TestProgress_AlreadySignedIn(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)

	move(p, workflow.StateServiceStart, workflow.StateAwaitDeviceCode)
	move(p, workflow.StateAwaitDeviceCode, workflow.StateDone)

	assert.Contains(t, buf.String(), "● Waiting for device code")
	assert.Contains(t, buf.String(), "⊘ Waiting for sign-in (already signed in)")
}

func TestProgress_CodeAndConnectionTogether(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)

	move(p, workflow.StateServiceStart, workflow.StateAwaitDeviceCode)
	p.auth(logpoll.AuthEvent{DeviceCode: "AB12-CD34", LoginURL: "https://github.com/login/device"})
	move(p, workflow.StateAwaitDeviceCode, workflow.StateDone)

	out := buf.String()
	assert.Contains(t, out, "AB12-CD34")
	assert.Contains(t, out, "Waiting for sign-in")
	assert.NotContains(t, out, "already signed in")
}

func TestProgress_Failure(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)

	move(p, workflow.StateInit, workflow.StateConnectivityCheck)
	move(p, workflow.StateConnectivityCheck, workflow.StateFailed)

	assert.Contains(t, buf.String(), "✗ Connecting")
}

func TestProgress_HelperLines(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)

	require.NoError(t, p.clipboard("AB12-CD34"))
	require.NoError(t, p.browser("https://github.com/login/device"))
	assert.Contains(t, buf.String(), "copied AB12-CD34 to the clipboard")
	assert.Contains(t, buf.String(), "opened https://github.com/login/device")

	buf.Reset()
	p.copyFn = func(string) error { return fmt.Errorf("no clipboard") }
	assert.Error(t, p.clipboard("AB12-CD34"))
	assert.Empty(t, buf.String())
}

func TestProgress_PausesForPrompt(t *testing.T) {
	var buf bytes.Buffer
	p := newTestProgress(&buf)
	w := &workflow.Workflow{Prompt: func(user, host string) (string, error) { return "secret", nil }}
	p.attach(w)

	move(p, workflow.StateConnectivityCheck, workflow.StateConverge)
	pw, err := w.Prompt("alice", "box1")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)
	require.NotNil(t, w.OnTransition)
	require.NotNil(t, w.Clipboard)
}

func TestSummary_CountsOnlyMutations(t *testing.T) {
	r := workflow.Report{
		Host:   "box1",
		User:   "vscode",
		Tunnel: "box1",
		URL:    "https://vscode.dev/tunnel/box1",
		Actions: []string{
			converge.WriteUnitFile.String(),
			converge.DaemonReload.String(),
			converge.StopIfRunning.String(),
			converge.StartUnit.String(),
		},
		Mutations: 2,
	}

	s := summary(r)

	assert.Equal(t, []string{converge.WriteUnitFile.String(), converge.DaemonReload.String()}, s.Actions)
	assert.Equal(t, "tunnelup logs box1", s.LogHint)
	assert.Contains(t, ui.RenderSummary(s), "2 steps")
}
