// SPDX-License-Identifier: MPL-2.0

package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoWorlds = `
worlds: [{
	name: "arena"
	physics: {type: "bullet", max_step_size: 0.002}
	models: [
		{name: "box", pose: {x: 1.0}},
		{name: "ground", static: true},
	]
	presets: [{name: "fast", physics: {type: "ode", max_step_size: 0.01}}]
}, {
	name: "shadow"
}]
`

func TestParseCUE(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(twoWorlds), "two.world")
	require.NoError(t, err)
	require.True(t, doc.HasWorld())
	require.Len(t, doc.Worlds, 2)

	arena := doc.Worlds[0]
	require.NotNil(t, arena.Physics)
	assert.Equal(t, "bullet", arena.Physics.Type)
	assert.InDelta(t, 0.002, arena.Physics.MaxStepSize, 1e-9)
	assert.InDelta(t, 1000.0, arena.Physics.RealTimeUpdateRate, 1e-9)
	assert.Equal(t, []string{"box", "ground"}, arena.ModelNames())
	assert.InDelta(t, 1.0, arena.Models[0].Pose.X, 1e-9)
	assert.True(t, arena.Models[1].Static)

	preset, ok := arena.Preset("fast")
	require.True(t, ok)
	assert.InDelta(t, 0.01, preset.Physics.MaxStepSize, 1e-9)
	_, ok = arena.Preset("slow")
	assert.False(t, ok)

	assert.Nil(t, doc.Worlds[1].Physics)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	src := `
worlds:
  - name: yard
    physics:
      type: dart
    models:
      - name: rover
        sensors:
          - name: cam
            type: camera
`
	doc, err := Parse([]byte(src), "yard.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Worlds, 1)
	assert.Equal(t, "yard", doc.Worlds[0].Name)
	assert.Equal(t, "dart", doc.Worlds[0].Physics.Type)
	require.Len(t, doc.Worlds[0].Models[0].Sensors, 1)
	assert.InDelta(t, 10.0, doc.Worlds[0].Models[0].Sensors[0].UpdateRate, 1e-9)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		src  string
	}{
		{"syntax error", "bad.world", `worlds: [`},
		{"unknown field", "bad.world", `worlds: [{name: "a", colour: "red"}]`},
		{"bad sensor type", "bad.world", `worlds: [{models: [{name: "m", sensors: [{name: "s", type: "sonar"}]}]}]`},
		{"world name with slash", "bad.world", `worlds: [{name: "a/b"}]`},
		{"yaml syntax", "bad.yaml", "worlds: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.src), tt.file)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "got %v", err)
		})
	}
}

func TestParseWithoutWorlds(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(`worlds: []`)
	require.NoError(t, err)
	assert.False(t, doc.HasWorld())

	doc, err = Parse(nil, "empty.yaml")
	require.NoError(t, err)
	assert.False(t, doc.HasWorld())
}

func TestLoaderResolution(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lab.world"), []byte(`worlds: [{name: "lab"}]`), 0o644))

	l := NewLoader(dir)

	doc, err := l.Load("lab.world")
	require.NoError(t, err)
	assert.Equal(t, "lab", doc.Worlds[0].Name)

	doc, err = l.Load(EmptyWorld)
	require.NoError(t, err)
	require.Len(t, doc.Worlds, 1)
	assert.Equal(t, "default", doc.Worlds[0].Name)
	assert.Equal(t, []string{"ground_plane"}, doc.Worlds[0].ModelNames())

	_, err = l.Load(filepath.Join(dir, "missing.world"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrParse))

	_, err = l.Load("")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWriteFileReload(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(twoWorlds), "two.world")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "saved.world")
	require.NoError(t, WriteFile(out, doc))

	back, err := NewLoader().Load(out)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestWorldHelpers(t *testing.T) {
	t.Parallel()

	w := World{Name: "w"}
	assert.False(t, w.SetPhysicsType("bullet"))

	w.Physics = &Physics{Type: "ode", Gravity: &Vector3{Z: -9.8}}
	w.Models = []Model{{Name: "m", Sensors: []Sensor{{Name: "s", Type: "imu"}}}}
	assert.True(t, w.SetPhysicsType("bullet"))
	assert.Equal(t, "bullet", w.Physics.Type)

	c := w.Clone()
	c.Physics.Gravity.Z = 0
	c.Models[0].Sensors[0].Name = "changed"
	assert.InDelta(t, -9.8, w.Physics.Gravity.Z, 1e-9)
	assert.Equal(t, "s", w.Models[0].Sensors[0].Name)

	doc := &Document{Worlds: []World{w}}
	got, ok := doc.World("w")
	require.True(t, ok)
	assert.Equal(t, "w", got.Name)
	_, ok = doc.World("x")
	assert.False(t, ok)
}
