// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Machine tracks the lifecycle of a single-use component. Embed it or hold it
// by pointer; the zero value is not usable, call New.
type Machine struct {
	state atomic.Int32

	mu      sync.Mutex
	lastErr error

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	readyCh  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New returns a Machine in StateCreated.
func New() *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		ctx:     ctx,
		cancel:  cancel,
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
	m.state.Store(int32(StateCreated))
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// IsRunning reports whether the machine is in StateRunning.
func (m *Machine) IsRunning() bool {
	return m.State() == StateRunning
}

// IsStopping reports whether a stop was requested or the machine is terminal.
func (m *Machine) IsStopping() bool {
	return m.State().IsStopping()
}

// LastError returns the error that moved the machine to StateFailed.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Begin moves Created to Starting. A cancelled ctx fails the machine.
func (m *Machine) Begin(ctx context.Context) error {
	select {
	case <-ctx.Done():
		err := fmt.Errorf("context cancelled before start: %w", ctx.Err())
		m.Fail(err)
		return err
	default:
	}

	if !m.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start in state %s", m.State())
	}
	return nil
}

// MarkRunning moves Starting to Running and releases WaitReady callers.
// It reports whether the transition happened.
func (m *Machine) MarkRunning() bool {
	if m.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(m.readyCh)
		return true
	}
	return false
}

// Fail records err and moves the machine to StateFailed.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()

	m.state.Store(int32(StateFailed))
	m.signalStop()
}

// RequestStop moves Starting or Running to Stopping. It returns true only for
// the call that performed the transition; every later call is a no-op. A
// machine that was never started goes straight to Stopped.
func (m *Machine) RequestStop() bool {
	for {
		current := m.State()
		switch current {
		case StateStopping, StateStopped, StateFailed:
			return false
		case StateCreated:
			if m.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				m.signalStop()
				return false
			}
		case StateStarting, StateRunning:
			if m.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				m.signalStop()
				return true
			}
		default:
			return false
		}
	}
}

// Finish marks the machine Stopped. Call it after all tracked goroutines exit.
func (m *Machine) Finish() {
	if m.State() != StateFailed {
		m.state.Store(int32(StateStopped))
	}
	m.signalStop()
}

// Context is cancelled once a stop is requested or the machine fails.
func (m *Machine) Context() context.Context {
	return m.ctx
}

// Stopped is closed once a stop is requested or the machine fails.
func (m *Machine) Stopped() <-chan struct{} {
	return m.stopCh
}

// WaitReady blocks until MarkRunning or ctx is done.
func (m *Machine) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-m.stopCh:
		return fmt.Errorf("stopped before ready (state %s)", m.State())
	case <-ctx.Done():
		return fmt.Errorf("waiting for ready: %w", ctx.Err())
	}
}

// Go runs fn in a tracked goroutine.
func (m *Machine) Go(fn func()) {
	m.wg.Go(fn)
}

// Wait blocks until every goroutine started with Go has returned.
func (m *Machine) Wait() {
	m.wg.Wait()
}

func (m *Machine) signalStop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}
