// SPDX-License-Identifier: MPL-2.0

package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/pkg/types"
)

func TestMailboxDrainsInOrder(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	want := []msgs.Command{
		msgs.OpenWorldCommand{Path: "a.world"},
		msgs.NewWorldCommand{},
		msgs.CloneCommand{World: "arena", Port: 11346},
		msgs.StopCommand{},
	}
	for _, c := range want {
		m.Enqueue(c)
	}

	assert.Equal(t, want, m.Drain())
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Drain())
}

func TestMailboxConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	const n = 500
	m := NewMailbox()

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			m.Enqueue(msgs.CloneCommand{Port: types.ListenPort(i + 1)})
		})
	}
	wg.Wait()

	got := m.Drain()
	require.Len(t, got, n)

	seen := make(map[types.ListenPort]bool, n)
	for _, c := range got {
		seen[c.(msgs.CloneCommand).Port] = true
	}
	assert.Len(t, seen, n)
}

func TestMailboxReadySignalsOnce(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	m.Enqueue(msgs.StopCommand{})
	m.Enqueue(msgs.StopCommand{})

	select {
	case <-m.Ready():
	default:
		t.Fatal("expected ready signal")
	}
	select {
	case <-m.Ready():
		t.Fatal("signal should coalesce")
	default:
	}
	assert.Len(t, m.Drain(), 2)
}

func TestDrainAndDispatchContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	f.srv.Enqueue(msgs.SaveWorldCommand{World: "missing", Path: "x.world"})
	f.srv.Enqueue(msgs.SaveWorldCommand{World: "arena"})
	f.srv.Enqueue(msgs.StopCommand{})

	assert.Equal(t, 3, f.srv.DrainAndDispatch(t.Context()))
	assert.True(t, f.srv.IsStopping())
	assert.Zero(t, f.srv.DrainAndDispatch(t.Context()))
}
