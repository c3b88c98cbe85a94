// SPDX-License-Identifier: MPL-2.0

// Package server is the control plane of a simulation process.
//
// A Server is built once from its collaborators (engine, sensors, bus,
// recorder, spawner, plugin host), bootstrapped, given a scene and then run.
// The run loop drains the control mailbox once per tick, updates sensors, and
// exits when a stop is requested or every world has finished. Control
// requests arrive on the bus, are queued by the subscription callback and are
// only ever executed by the run loop.
package server
