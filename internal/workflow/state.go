package workflow

import (
	"fmt"
	"time"
)

// State is a step of the provisioning state machine.
type State int

const (
	StateInit State = iota
	StateConnectivityCheck
	StateUserProvisioning
	StateConverge
	StateServiceStart
	StateAwaitDeviceCode
	StateAwaitConnection
	StateDone
	StateFailed
)

// String returns the display name for a state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateConnectivityCheck:
		return "ConnectivityCheck"
	case StateUserProvisioning:
		return "UserProvisioning"
	case StateConverge:
		return "Converge"
	case StateServiceStart:
		return "ServiceStart"
	case StateAwaitDeviceCode:
		return "AwaitDeviceCode"
	case StateAwaitConnection:
		return "AwaitConnection"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Label is the phase name shown to the operator.
func (s State) Label() string {
	switch s {
	case StateConnectivityCheck:
		return "Connecting"
	case StateUserProvisioning:
		return "Creating service user"
	case StateConverge:
		return "Installing"
	case StateServiceStart:
		return "Starting tunnel"
	case StateAwaitDeviceCode:
		return "Waiting for device code"
	case StateAwaitConnection:
		return "Waiting for sign-in"
	default:
		return s.String()
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the legal moves. Failed is reachable from every
// non-terminal state and is not listed.
var transitions = map[State][]State{
	StateInit:              {StateConnectivityCheck},
	StateConnectivityCheck: {StateUserProvisioning, StateConverge},
	StateUserProvisioning:  {StateConverge},
	StateConverge:          {StateServiceStart},
	StateServiceStart:      {StateAwaitDeviceCode},
	StateAwaitDeviceCode:   {StateAwaitConnection, StateDone},
	StateAwaitConnection:   {StateDone},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition records one move of the state machine.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	// Note says why the move happened, e.g. "login as vscode failed".
	Note string `json:"note,omitempty"`
}
