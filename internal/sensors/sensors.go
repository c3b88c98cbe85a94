// SPDX-License-Identifier: MPL-2.0

// Package sensors updates the sensors attached to models and publishes their
// readings.
//
// Render-type sensors (camera, ray) update on a background goroutine started by
// RunThreads; every other type updates when the server loop calls RunOnce.
package sensors

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/pkg/types"
)

const (
	threadTick = 5 * time.Millisecond
	noiseSigma = 0.001
)

type (
	// Source lists the models whose sensors should update.
	Source interface {
		Worlds() []*physics.World
	}

	// Publisher is the part of the bus the manager needs.
	Publisher interface {
		Publish(topic string, v any) error
	}

	// Manager owns sensor update cadence.
	Manager struct {
		src    Source
		pub    Publisher
		logger *log.Logger

		mu      sync.Mutex
		rng     *rand.Rand
		last    map[key]time.Time
		updates uint64

		threadMu sync.Mutex
		cancel   context.CancelFunc
		done     chan struct{}
	}

	// Option configures a Manager.
	Option func(*Manager)

	key struct {
		world  types.WorldName
		model  string
		sensor string
	}
)

// WithLogger sets the parent logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = logging.Sub(l, "sensors") }
}

// WithSeed seeds the measurement noise generator.
func WithSeed(seed uint64) Option {
	return func(m *Manager) { m.rng = newRand(seed) }
}

// Reseed restarts the measurement noise sequence from seed.
func (m *Manager) Reseed(seed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = newRand(seed)
}

// NewManager creates a manager reading models from src.
func NewManager(src Source, pub Publisher, opts ...Option) *Manager {
	m := &Manager{
		src:    src,
		pub:    pub,
		logger: logging.Discard(),
		rng:    rand.New(rand.NewPCG(1, 2)),
		last:   make(map[key]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunOnce updates every non-threaded sensor that is due. force updates all of
// them, threaded ones included, regardless of their rate.
func (m *Manager) RunOnce(force bool) {
	m.update(time.Now(), force, func(t string) bool { return force || !isThreaded(t) })
}

// RunThreads starts the background goroutine for render-type sensors. Calling
// it again while running is a no-op.
func (m *Manager) RunThreads(ctx context.Context) {
	m.threadMu.Lock()
	defer m.threadMu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(threadTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.update(now, false, isThreaded)
			}
		}
	}()
}

// Stop ends the background goroutine and waits for it.
func (m *Manager) Stop() {
	m.threadMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.threadMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// RemoveSensors forgets every sensor's update history. Sensors of worlds that
// no longer exist stop updating because the source no longer lists them.
func (m *Manager) RemoveSensors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.last)
}

// Updates returns the number of readings published so far.
func (m *Manager) Updates() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *Manager) update(now time.Time, force bool, include func(sensorType string) bool) {
	for _, w := range m.src.Worlds() {
		for _, model := range w.Models() {
			for _, s := range model.Sensors {
				if !include(s.Type) {
					continue
				}
				k := key{world: model.World, model: model.Name, sensor: s.Name}
				if !m.due(k, now, s.UpdateRate, force) {
					continue
				}
				reading := m.measure(model, s.Name, s.Type)
				if err := m.pub.Publish(msgs.SensorTopic(model.World, model.Name, s.Name), reading); err != nil {
					m.logger.Warn("publish sensor reading failed", "sensor", s.Name, "err", err)
				}
			}
		}
	}
}

func (m *Manager) due(k key, now time.Time, rate float64, force bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, seen := m.last[k]
	if !force && seen && rate > 0 && now.Sub(last) < time.Duration(float64(time.Second)/rate) {
		return false
	}
	m.last[k] = now
	m.updates++
	return true
}

func (m *Manager) measure(model physics.ModelState, name, sensorType string) msgs.SensorReading {
	r := msgs.SensorReading{
		World:   string(model.World),
		Model:   model.Name,
		Sensor:  name,
		Type:    sensorType,
		SimTime: model.SimTime,
	}

	p, v := model.Pose, model.Velocity
	switch sensorType {
	case "imu":
		r.Values = []float64{v.X, v.Y, v.Z}
	case "gps":
		r.Values = []float64{p.X, p.Y, p.Z}
	case "altimeter", "ray":
		r.Values = []float64{p.Z}
	case "contact":
		touching := 0.0
		if p.Z <= 0 {
			touching = 1
		}
		return withValues(r, touching)
	case "camera":
		r.Values = []float64{p.X, p.Y, p.Z}
	}

	m.mu.Lock()
	for i := range r.Values {
		r.Values[i] += m.rng.NormFloat64() * noiseSigma
	}
	m.mu.Unlock()
	return r
}

func withValues(r msgs.SensorReading, values ...float64) msgs.SensorReading {
	r.Values = values
	return r
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func isThreaded(sensorType string) bool {
	return sensorType == "camera" || sensorType == "ray"
}
