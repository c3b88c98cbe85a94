// SPDX-License-Identifier: MPL-2.0

// Package msgs defines the messages exchanged over the bus by the server
// control plane and the topics they travel on.
package msgs
