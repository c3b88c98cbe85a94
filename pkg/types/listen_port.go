// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
var ErrInvalidListenPort = errors.New("invalid listen port")

type (
	// ListenPort is a TCP port a bus master listens on.
	// The zero value means "not set"; a port a clone can be sent to must be 1-65535.
	ListenPort int

	// InvalidListenPortError is returned when a ListenPort is outside 1-65535.
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// String returns the decimal form of the port.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error unless the port is in the range 1-65535.
func (p ListenPort) Validate() error {
	if p < 1 || p > 65535 {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidListenPortError.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be 1-65535", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }
