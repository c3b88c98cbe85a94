// SPDX-License-Identifier: MPL-2.0

// Package transport is the publish/subscribe bus the server control plane talks
// over.
//
// Bus is the in-process hub. Each subscription owns an unbounded queue and a
// delivery goroutine, so Publish never blocks on a slow handler. Master exposes
// a Bus to other processes over a websocket endpoint, and Client is the remote
// side used by CLI tools and cloned servers.
package transport
