// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEngineName is the sentinel error wrapped by InvalidEngineNameError.
var ErrInvalidEngineName = errors.New("invalid engine name")

type (
	// EngineName names a physics engine implementation (for example "ode").
	// The zero value means "keep whatever the scene document declares".
	EngineName string

	// InvalidEngineNameError is returned when a non-zero EngineName is
	// whitespace-only or not lower case.
	InvalidEngineNameError struct {
		Value EngineName
	}
)

// String returns the string form of the EngineName.
func (n EngineName) String() string { return string(n) }

// Validate returns nil for the zero value and for lower-case, non-blank names.
// It does not check registration; that is the engine factory's job.
func (n EngineName) Validate() error {
	if n == "" {
		return nil
	}
	s := string(n)
	if strings.TrimSpace(s) == "" || s != strings.ToLower(s) {
		return &InvalidEngineNameError{Value: n}
	}
	return nil
}

// Error implements the error interface for InvalidEngineNameError.
func (e *InvalidEngineNameError) Error() string {
	return fmt.Sprintf("invalid engine name %q: must be a non-blank lower-case identifier", e.Value)
}

// Unwrap returns ErrInvalidEngineName for errors.Is() compatibility.
func (e *InvalidEngineNameError) Unwrap() error { return ErrInvalidEngineName }
