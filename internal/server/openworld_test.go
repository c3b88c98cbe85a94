// SPDX-License-Identifier: MPL-2.0

package server

import (
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

func modelNames(t *testing.T, f *fixture) []string {
	t.Helper()
	w, err := f.engine.ResolveWorld(types.DefaultWorldName)
	require.NoError(t, err)
	names := make([]string, 0)
	for _, m := range w.Models() {
		names = append(names, m.Name)
	}
	return names
}

func TestOpenWorldUnreadableLeavesNoWorlds(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	err := f.srv.openWorld(t.Context(), filepath.Join(f.dir, "missing.world"))
	require.ErrorIs(t, err, ErrLoad)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, NotFound, le.Kind)
	assert.Zero(t, f.engine.WorldCount())
	assert.Empty(t, f.bus.Namespaces())
}

func TestOpenWorldWithoutWorldSection(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	err := f.srv.openWorld(t.Context(), f.writeScene(t, "none.world", "worlds: []"))
	require.ErrorIs(t, err, ErrNoWorldSection)
	assert.Zero(t, f.engine.WorldCount())
}

func TestOpenWorldLoadsDefault(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	path := f.writeScene(t, "other.yaml", `
worlds:
  - name: warehouse
    models:
      - name: shelf
        static: true
      - name: cart
`)
	require.NoError(t, f.srv.openWorld(t.Context(), path))
	assert.Equal(t, []string{"default"}, f.engine.WorldNames())
	assert.Equal(t, []string{"shelf", "cart"}, modelNames(t, f))
	assert.True(t, f.engine.WorldsRunning())
}

func TestOpenWorldIgnoresIterationLimit(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	f.srv.SetParams(map[string]string{ParamIterations: "3"})
	require.NoError(t, f.srv.openWorld(t.Context(), f.writeScene(t, "lab.world", arenaScene)))

	w, err := f.engine.ResolveWorld(types.DefaultWorldName)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.Iterations() > 10 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, w.IsRunning())
}

func TestNewWorldCommand(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	f.srv.Enqueue(msgs.NewWorldCommand{})
	f.srv.DrainAndDispatch(t.Context())

	assert.Equal(t, []string{"default"}, f.engine.WorldNames())
	assert.Equal(t, []string{"ground_plane"}, modelNames(t, f))
}

func TestSaveThenOpenKeepsModels(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	path := filepath.Join(f.dir, "saved", "arena.world")

	f.srv.Enqueue(msgs.SaveWorldCommand{World: "arena", Path: path})
	f.srv.Enqueue(msgs.OpenWorldCommand{Path: path})
	require.Equal(t, 2, f.srv.DrainAndDispatch(t.Context()))

	doc, err := scene.ParseString(arenaScene)
	require.NoError(t, err)
	want := doc.Worlds[0].ModelNames()

	got := modelNames(t, f)
	slices.Sort(want)
	slices.Sort(got)
	assert.Equal(t, want, got)
}
