// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the simserver command line.
//
// The root command runs a simulation server on a world file or a state log.
// The control subcommands talk to a running server through its master
// endpoint.
package cmd
