// SPDX-License-Identifier: MPL-2.0

package sensors

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/pkg/scene"
)

type recorder struct {
	mu     sync.Mutex
	topics map[string]int
	last   map[string]any
}

func (r *recorder) Publish(topic string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topics == nil {
		r.topics = map[string]int{}
		r.last = map[string]any{}
	}
	r.topics[topic]++
	r.last[topic] = v
	return nil
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics[topic]
}

func newEngine(t *testing.T) *physics.Engine {
	t.Helper()

	bus := transport.NewBus(transport.URI{Host: "127.0.0.1"}, nil)
	t.Cleanup(bus.Close)

	e := physics.NewEngine(bus, physics.WithMinimalComms(true))
	w, err := e.CreateWorld("lab")
	require.NoError(t, err)
	require.NoError(t, w.Load(&scene.World{
		Models: []scene.Model{{
			Name: "rover",
			Pose: scene.Vector3{Z: 2},
			Sensors: []scene.Sensor{
				{Name: "imu", Type: "imu", UpdateRate: 1},
				{Name: "cam", Type: "camera", UpdateRate: 1000},
				{Name: "touch", Type: "contact", UpdateRate: 1},
			},
		}},
	}))
	require.NoError(t, w.Init())
	t.Cleanup(e.Fini)
	return e
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	var rec recorder
	m := NewManager(e, &rec, WithSeed(7))

	m.RunOnce(false)
	assert.Equal(t, 1, rec.count("/sim/lab/rover/imu"))
	assert.Equal(t, 1, rec.count("/sim/lab/rover/touch"))
	assert.Zero(t, rec.count("/sim/lab/rover/cam"), "camera updates on the sensor goroutine")

	// rate-limited at 1Hz
	m.RunOnce(false)
	assert.Equal(t, 1, rec.count("/sim/lab/rover/imu"))

	m.RunOnce(true)
	assert.Equal(t, 2, rec.count("/sim/lab/rover/imu"))
	assert.Equal(t, 1, rec.count("/sim/lab/rover/cam"))
	assert.Equal(t, uint64(5), m.Updates())

	m.RemoveSensors()
	m.RunOnce(false)
	assert.Equal(t, 3, rec.count("/sim/lab/rover/imu"))
}

func TestRunThreads(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	var rec recorder
	m := NewManager(e, &rec)

	m.RunThreads(context.Background())
	m.RunThreads(context.Background())
	require.Eventually(t, func() bool { return rec.count("/sim/lab/rover/cam") >= 3 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, rec.count("/sim/lab/rover/imu"))

	m.Stop()
	n := rec.count("/sim/lab/rover/cam")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.count("/sim/lab/rover/cam"))
	m.Stop()
}

func TestReadingsOverBus(t *testing.T) {
	t.Parallel()

	bus := transport.NewBus(transport.URI{Host: "127.0.0.1"}, nil)
	t.Cleanup(bus.Close)

	e := physics.NewEngine(bus)
	w, err := e.CreateWorld("yard")
	require.NoError(t, err)
	require.NoError(t, w.Load(&scene.World{Models: []scene.Model{{
		Name:    "mast",
		Static:  true,
		Pose:    scene.Vector3{X: 3, Y: 4, Z: 5},
		Sensors: []scene.Sensor{{Name: "gps", Type: "gps", UpdateRate: 1}},
	}}}))
	require.NoError(t, w.Init())

	got := make(chan []byte, 1)
	bus.Subscribe("/sim/yard/mast/gps", func(data []byte) { got <- data })

	NewManager(e, bus, WithSeed(1)).RunOnce(true)

	select {
	case data := <-got:
		var r struct {
			Type   string    `json:"type"`
			Values []float64 `json:"values"`
		}
		require.NoError(t, json.Unmarshal(data, &r))
		assert.Equal(t, "gps", r.Type)
		require.Len(t, r.Values, 3)
		assert.InDelta(t, 3, r.Values[0], 0.01)
		assert.InDelta(t, 4, r.Values[1], 0.01)
		assert.InDelta(t, 5, r.Values[2], 0.01)
	case <-time.After(time.Second):
		t.Fatal("no reading published")
	}
}
