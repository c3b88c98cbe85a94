// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
)

const (
	// StateCreated means the component exists but Begin has not been called.
	StateCreated State = iota
	// StateStarting means the component is loading or binding.
	StateStarting
	// StateRunning means the component is serving.
	StateRunning
	// StateStopping means a stop was requested and teardown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: startup or a fatal error ended the component.
	StateFailed
)

// ErrInvalidState is returned when a State value is not a defined lifecycle state.
var ErrInvalidState = errors.New("invalid lifecycle state")

type (
	// State is a lifecycle state.
	State int32

	// InvalidStateError wraps ErrInvalidState.
	InvalidStateError struct {
		Value State
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid lifecycle state %d", e.Value)
}

// Unwrap returns ErrInvalidState.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Validate returns an InvalidStateError for values outside the defined states.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// IsStopping reports whether s is Stopping or terminal.
func (s State) IsStopping() bool {
	return s == StateStopping || s.IsTerminal()
}
