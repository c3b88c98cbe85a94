// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE plumbing shared by scene documents and the
// server configuration file.
//
// Decoding always follows the same three steps:
//
//  1. Compile the embedded schema
//  2. Compile (or encode) the user data and unify it with a schema definition
//  3. Validate and decode into a Go struct
//
// Marshal goes the other way and renders a Go value as CUE source, which is how
// worlds are written back to disk.
package cueutil
