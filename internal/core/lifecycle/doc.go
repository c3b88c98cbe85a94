// SPDX-License-Identifier: MPL-2.0

// Package lifecycle provides the state machine shared by the simulation server
// and the bus master endpoint.
//
// A Machine moves through Created, Starting, Running, Stopping and Stopped (or
// Failed). Reads are lock-free; transitions use compare-and-swap so a stop
// request may arrive from any goroutine, including a signal handler, and only
// the first one wins.
package lifecycle
