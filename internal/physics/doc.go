// SPDX-License-Identifier: MPL-2.0

// Package physics owns world instances and steps them.
//
// Each running world steps on its own goroutine, paced by its real-time update
// rate. The integrators are deliberately simple kinematic models selected by
// the physics type named in the scene (ode, bullet, dart, simbody); they exist
// to give the server something real to load, run, pause, save and clone.
package physics
