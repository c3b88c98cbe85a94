// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"fmt"

	"github.com/simforge/simserver/pkg/types"
)

// StartupKind classifies a StartupError.
type StartupKind int

const (
	// SubsystemInitFailed means a collaborator could not be set up.
	SubsystemInitFailed StartupKind = iota + 1
	// InvalidLifecycle means an operation was called out of order.
	InvalidLifecycle
)

// LoadKind classifies a LoadError.
type LoadKind int

const (
	// NotFound means the scene resource could not be read.
	NotFound LoadKind = iota + 1
	// ParseFailed means the scene was read but rejected by the parser.
	ParseFailed
	// EngineRejected means the physics engine refused a world.
	EngineRejected
)

var (
	// ErrStartup is wrapped by every StartupError.
	ErrStartup = errors.New("server startup failed")
	// ErrLoad is wrapped by every LoadError.
	ErrLoad = errors.New("scene load failed")
	// ErrCommand is wrapped by every CommandError.
	ErrCommand = errors.New("control command failed")
	// ErrSpawn is wrapped by every SpawnError.
	ErrSpawn = errors.New("clone spawn failed")
	// ErrNoFilename is returned when a save request carries no destination.
	ErrNoFilename = errors.New("no filename specified")
	// ErrNoWorldSection is returned when a scene to open has no world.
	ErrNoWorldSection = errors.New("scene has no world section")
)

type (
	// StartupError is fatal: the process should exit before the run loop.
	StartupError struct {
		Kind      StartupKind
		Subsystem string
		Err       error
	}

	// LoadError is fatal for the load attempt.
	LoadError struct {
		Kind     LoadKind
		Resource string
		Err      error
	}

	// CommandError is logged per command; the run loop continues.
	CommandError struct {
		Command string
		Err     error
	}

	// SpawnError is the failure of a clone to start its child process.
	SpawnError struct {
		Port types.ListenPort
		Err  error
	}
)

func (k StartupKind) String() string {
	switch k {
	case SubsystemInitFailed:
		return "subsystem init failed"
	case InvalidLifecycle:
		return "invalid lifecycle"
	default:
		return fmt.Sprintf("StartupKind(%d)", int(k))
	}
}

func (k LoadKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case ParseFailed:
		return "parse failed"
	case EngineRejected:
		return "engine rejected"
	default:
		return fmt.Sprintf("LoadKind(%d)", int(k))
	}
}

func (e *StartupError) Error() string {
	if e.Subsystem != "" {
		return fmt.Sprintf("startup: %s (%s): %v", e.Kind, e.Subsystem, e.Err)
	}
	return fmt.Sprintf("startup: %s: %v", e.Kind, e.Err)
}

// Unwrap returns ErrStartup and the cause.
func (e *StartupError) Unwrap() []error { return []error{ErrStartup, e.Err} }

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %s: %v", e.Resource, e.Kind, e.Err)
}

// Unwrap returns ErrLoad and the cause.
func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

// Unwrap returns ErrCommand and the cause.
func (e *CommandError) Unwrap() []error { return []error{ErrCommand, e.Err} }

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn clone on port %d: %v", e.Port, e.Err)
}

// Unwrap returns ErrSpawn and the cause.
func (e *SpawnError) Unwrap() []error { return []error{ErrSpawn, e.Err} }

func startupErr(kind StartupKind, subsystem string, err error) error {
	return &StartupError{Kind: kind, Subsystem: subsystem, Err: err}
}

func loadErr(kind LoadKind, resource string, err error) error {
	return &LoadError{Kind: kind, Resource: resource, Err: err}
}
