// SPDX-License-Identifier: MPL-2.0

// Package issue turns startup failures into messages a user can act on.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. Well-known failure kinds also have a markdown guide in the
// catalog, rendered with glamour at the command-line boundary.
package issue
