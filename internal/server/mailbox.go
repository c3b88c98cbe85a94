// SPDX-License-Identifier: MPL-2.0

package server

import (
	"sync"

	"github.com/simforge/simserver/internal/msgs"
)

// Mailbox is the queue between the bus callback and the run loop. It is
// unbounded and ordered; the lock is held only to append or to swap.
type Mailbox struct {
	mu      sync.Mutex
	pending []msgs.Command
	ready   chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Enqueue appends cmd and wakes the run loop. It never blocks beyond lock
// contention.
func (m *Mailbox) Enqueue(cmd msgs.Command) {
	m.mu.Lock()
	m.pending = append(m.pending, cmd)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued command in arrival order.
func (m *Mailbox) Drain() []msgs.Command {
	m.mu.Lock()
	out := m.pending
	m.pending = nil
	m.mu.Unlock()
	return out
}

// Len returns the number of queued commands.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Ready receives a value after at least one Enqueue since the last receive.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}
