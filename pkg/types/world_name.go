// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultWorldName is the name given to worlds created without one, and to every
// world opened through a world swap.
const DefaultWorldName WorldName = "default"

// ErrInvalidWorldName is the sentinel error wrapped by InvalidWorldNameError.
var ErrInvalidWorldName = errors.New("invalid world name")

type (
	// WorldName identifies a world inside one server process.
	// The zero value ("") is accepted by lookups and means "the default world".
	WorldName string

	// InvalidWorldNameError is returned when a WorldName is whitespace-only or
	// contains a path separator (names become bus namespaces).
	InvalidWorldNameError struct {
		Value WorldName
	}
)

// String returns the string form of the WorldName.
func (n WorldName) String() string { return string(n) }

// Validate returns nil for the zero value and for names that can be used as a
// bus namespace segment.
func (n WorldName) Validate() error {
	if n == "" {
		return nil
	}
	s := string(n)
	if strings.TrimSpace(s) == "" || strings.ContainsAny(s, "/ \t\n") {
		return &InvalidWorldNameError{Value: n}
	}
	return nil
}

// Error implements the error interface for InvalidWorldNameError.
func (e *InvalidWorldNameError) Error() string {
	return fmt.Sprintf("invalid world name %q: must not be blank or contain '/' or whitespace", e.Value)
}

// Unwrap returns ErrInvalidWorldName for errors.Is() compatibility.
func (e *InvalidWorldNameError) Unwrap() error { return ErrInvalidWorldName }
