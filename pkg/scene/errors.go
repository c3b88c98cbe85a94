// SPDX-License-Identifier: MPL-2.0

package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a scene resource cannot be opened for reading.
	ErrNotFound = errors.New("scene resource not found")

	// ErrParse is returned when a scene resource is readable but not a valid document.
	ErrParse = errors.New("scene parse failed")
)

type (
	// NotFoundError names the resource that could not be read.
	NotFoundError struct {
		Resource string
		Err      error
	}

	// ParseError names the resource that failed to parse and carries the
	// formatted validation error.
	ParseError struct {
		Resource string
		Err      error
	}
)

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not open scene resource %q: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("could not open scene resource %q", e.Resource)
}

// Unwrap returns ErrNotFound so callers can use errors.Is.
func (e *NotFoundError) Unwrap() []error { return []error{ErrNotFound, e.Err} }

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse scene %q: %v", e.Resource, e.Err)
}

// Unwrap returns ErrParse so callers can use errors.Is.
func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }
