// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

func TestCloneNotifies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cmd       msgs.CloneCommand
		wantWorld string
		cloned    bool
	}{
		{"named world", msgs.CloneCommand{World: "arena", Port: 11346}, "arena", true},
		{"unnamed resolves first world", msgs.CloneCommand{Port: 11347}, "arena", true},
		{"unknown world", msgs.CloneCommand{World: "nowhere", Port: 11348}, "nowhere", false},
		{"missing port", msgs.CloneCommand{World: "arena"}, "arena", false},
		{"port out of range", msgs.CloneCommand{World: "arena", Port: 70000}, "arena", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := loaded(t)
			notes := f.collect(msgs.TopicWorldModify)

			f.srv.Enqueue(tt.cmd)
			require.Equal(t, 1, f.srv.DrainAndDispatch(t.Context()))

			require.Eventually(t, func() bool { return len(notes()) == 1 }, time.Second, time.Millisecond)
			got := worldModifies(t, notes())[0]
			assert.Equal(t, tt.wantWorld, got.WorldName)
			assert.Equal(t, tt.cloned, got.Cloned)

			specs := f.spawner.spawned()
			if !tt.cloned {
				assert.Empty(t, got.ClonedURI)
				assert.Empty(t, specs)
				return
			}

			assert.Equal(t, msgs.CloneURI("localhost", tt.cmd.Port), got.ClonedURI)
			require.Len(t, specs, 1)
			scenePath := filepath.Join(f.dir, "clone."+tt.cmd.Port.String()+".world")
			assert.Equal(t, []string{scenePath}, specs[0].Args)
			assert.Equal(t, got.ClonedURI, specs[0].Env[transport.MasterURIEnv])
			assert.Empty(t, specs[0].Path)
			assert.FileExists(t, scenePath)
		})
	}
}

func TestCloneSpawnFailure(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	f.spawner.err = errors.New("exec format error")
	notes := f.collect(msgs.TopicWorldModify)

	f.srv.Enqueue(msgs.CloneCommand{World: "arena", Port: 11346})
	f.srv.DrainAndDispatch(t.Context())

	require.Eventually(t, func() bool { return len(notes()) == 1 }, time.Second, time.Millisecond)
	got := worldModifies(t, notes())[0]
	assert.False(t, got.Cloned)
	assert.Empty(t, got.ClonedURI)
}

func TestCloneOrchestrator(t *testing.T) {
	t.Parallel()

	f := loaded(t)
	o := NewCloneOrchestrator(f.engine, f.spawner,
		WithCloneHost("sim.example"),
		WithCloneDir(f.dir),
		WithCloneExecutable("/usr/local/bin/simserver"),
	)

	res, err := o.Clone(t.Context(), CloneRequest{Port: 12000})
	require.NoError(t, err)
	assert.Equal(t, "arena", res.World)
	assert.Equal(t, "http://sim.example:12000", res.URI)
	assert.Equal(t, o.ScenePath(12000), res.Path)
	assert.Equal(t, 4242, res.PID)
	assert.Equal(t, "/usr/local/bin/simserver", f.spawner.spawned()[0].Path)

	// the saved scene holds the same models
	doc, err := scene.NewLoader().Load(res.Path)
	require.NoError(t, err)
	require.True(t, doc.HasWorld())
	assert.Equal(t, []string{"ground", "box", "drone"}, doc.Worlds[0].ModelNames())

	f.spawner.err = errors.New("no such file")
	_, err = o.Clone(t.Context(), CloneRequest{World: "arena", Port: 12001})
	require.ErrorIs(t, err, ErrSpawn)

	var se *SpawnError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.ListenPort(12001), se.Port)

	_, err = o.Clone(t.Context(), CloneRequest{World: "ghost", Port: 12002})
	require.ErrorIs(t, err, physics.ErrWorldNotFound)
}
