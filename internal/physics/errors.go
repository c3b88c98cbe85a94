// SPDX-License-Identifier: MPL-2.0

package physics

import (
	"errors"
	"fmt"

	"github.com/simforge/simserver/pkg/types"
)

var (
	// ErrWorldNotFound is returned when a world name does not resolve.
	ErrWorldNotFound = errors.New("world not found")
	// ErrWorldExists is returned when CreateWorld reuses a name.
	ErrWorldExists = errors.New("world already exists")
	// ErrUnknownEngine is returned when a world names an unregistered physics type.
	ErrUnknownEngine = errors.New("unknown physics engine")
	// ErrProfileNotFound is returned when no world carries the requested preset.
	ErrProfileNotFound = errors.New("physics profile not found")
	// ErrInvalidPhysics is returned for physics parameters the integrators cannot use.
	ErrInvalidPhysics = errors.New("invalid physics parameters")
	// ErrWorldState is returned when a world operation is called out of order.
	ErrWorldState = errors.New("invalid world state")
)

type (
	// WorldNotFoundError names the world that did not resolve.
	WorldNotFoundError struct {
		Name types.WorldName
	}

	// UnknownEngineError names the unregistered physics type.
	UnknownEngineError struct {
		Engine string
	}
)

func (e *WorldNotFoundError) Error() string {
	if e.Name == "" {
		return "no world loaded"
	}
	return fmt.Sprintf("world %q not found", e.Name)
}

// Unwrap returns ErrWorldNotFound.
func (e *WorldNotFoundError) Unwrap() error { return ErrWorldNotFound }

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("physics engine %q is not registered", e.Engine)
}

// Unwrap returns ErrUnknownEngine.
func (e *UnknownEngineError) Unwrap() error { return ErrUnknownEngine }
