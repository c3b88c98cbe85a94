// SPDX-License-Identifier: MPL-2.0

package physics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

const statsInterval = 200 * time.Millisecond

type (
	// World is one simulated world.
	World struct {
		name   types.WorldName
		engine *Engine
		logger *log.Logger

		mu          sync.RWMutex
		def         scene.World
		physics     scene.Physics
		integrator  Integrator
		bodies      []Body
		iterations  uint64
		simTime     float64
		loaded      bool
		initialized bool
		started     bool
		lastStats   time.Time

		paused  atomic.Bool
		running atomic.Bool
		stopCh  chan struct{}
		doneCh  chan struct{}
		stop    sync.Once
	}

	// ModelState is a read-only view of one model, as seen by the sensor subsystem.
	ModelState struct {
		World    types.WorldName
		Name     string
		Static   bool
		Pose     scene.Vector3
		Velocity scene.Vector3
		Sensors  []scene.Sensor
		SimTime  float64
	}
)

var defaultPhysics = scene.Physics{
	Type:               "ode",
	MaxStepSize:        0.001,
	RealTimeUpdateRate: 1000,
	Gravity:            &scene.Vector3{Z: -9.8},
}

func newWorld(name types.WorldName, e *Engine) *World {
	return &World{
		name:   name,
		engine: e,
		logger: e.logger.With("world", string(name)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name returns the world name.
func (w *World) Name() types.WorldName {
	return w.name
}

// Load applies a world definition. A missing physics section means the
// default ode setup. The definition's own name is ignored in favour of the
// name the world was created with.
func (w *World) Load(def *scene.World) error {
	if def == nil {
		return fmt.Errorf("load world %s: %w: nil definition", w.name, ErrWorldState)
	}

	phys := defaultPhysics.Clone()
	if def.Physics != nil {
		phys = def.Physics.Clone()
	}
	if phys.Gravity == nil {
		phys.Gravity = &scene.Vector3{Z: -9.8}
	}

	integrator, ok := w.engine.integrator(phys.Type)
	if !ok {
		return fmt.Errorf("load world %s: %w", w.name, &UnknownEngineError{Engine: phys.Type})
	}
	if phys.MaxStepSize <= 0 {
		return fmt.Errorf("load world %s: %w: max_step_size must be positive", w.name, ErrInvalidPhysics)
	}

	w.mu.Lock()
	w.def = def.Clone()
	w.def.Name = string(w.name)
	w.physics = phys
	w.integrator = integrator
	w.loaded = true
	w.mu.Unlock()

	w.engine.pub.AdvertiseNamespace(msgs.WorldNamespace(w.name))
	w.logger.Debug("world loaded", "engine", phys.Type, "models", len(def.Models))
	return nil
}

// Init resets the dynamic state of every model from the loaded definition.
func (w *World) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return fmt.Errorf("init world %s: %w: not loaded", w.name, ErrWorldState)
	}
	w.bodies = make([]Body, len(w.def.Models))
	for i, m := range w.def.Models {
		w.bodies[i] = Body{Pose: m.Pose, Velocity: m.Velocity}
	}
	w.iterations = 0
	w.simTime = 0
	w.initialized = true
	return nil
}

// Run starts stepping on a new goroutine. iterations > 0 stops the world after
// that many steps; zero runs until Stop.
func (w *World) Run(iterations uint64) error {
	w.mu.Lock()
	if !w.initialized {
		w.mu.Unlock()
		return fmt.Errorf("run world %s: %w: not initialized", w.name, ErrWorldState)
	}
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("run world %s: %w: already started", w.name, ErrWorldState)
	}
	w.started = true
	period := w.period()
	w.mu.Unlock()

	w.running.Store(true)
	go w.loop(iterations, period)
	return nil
}

// Stop halts the world goroutine and waits for it to exit.
func (w *World) Stop() {
	w.stop.Do(func() { close(w.stopCh) })

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.doneCh
	}
}

// IsRunning reports whether the world goroutine is active. Paused worlds are running.
func (w *World) IsRunning() bool {
	return w.running.Load()
}

// SetPaused pauses or resumes stepping.
func (w *World) SetPaused(paused bool) {
	w.paused.Store(paused)
}

// IsPaused reports whether stepping is paused.
func (w *World) IsPaused() bool {
	return w.paused.Load()
}

// Iterations returns the number of steps taken since Init.
func (w *World) Iterations() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.iterations
}

// SimTime returns the simulated seconds elapsed since Init.
func (w *World) SimTime() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.simTime
}

// PhysicsType returns the physics engine the world was loaded with.
func (w *World) PhysicsType() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.physics.Type
}

// ApplyPreset replaces the physics parameters with the named preset. The
// physics type stays as loaded. It reports whether the preset exists.
func (w *World) ApplyPreset(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.def.Preset(name)
	if !ok {
		return false
	}
	next := p.Physics.Clone()
	next.Type = w.physics.Type
	if next.Gravity == nil {
		next.Gravity = w.physics.Gravity
	}
	if next.MaxStepSize <= 0 {
		next.MaxStepSize = w.physics.MaxStepSize
	}
	w.physics = next
	return true
}

// Models returns the current state of every model.
func (w *World) Models() []ModelState {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ModelState, len(w.def.Models))
	for i, m := range w.def.Models {
		out[i] = ModelState{
			World:   w.name,
			Name:    m.Name,
			Static:  m.Static,
			Pose:    m.Pose,
			Sensors: m.Sensors,
			SimTime: w.simTime,
		}
		if i < len(w.bodies) {
			out[i].Pose = w.bodies[i].Pose
			out[i].Velocity = w.bodies[i].Velocity
		}
	}
	return out
}

// Snapshot returns the world definition with every model at its current pose.
func (w *World) Snapshot() scene.World {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := w.def.Clone()
	phys := w.physics.Clone()
	out.Physics = &phys
	for i := range out.Models {
		if i < len(w.bodies) {
			out.Models[i].Pose = w.bodies[i].Pose
			out.Models[i].Velocity = w.bodies[i].Velocity
		}
	}
	return out
}

// Save writes the current world state to path as a scene document.
func (w *World) Save(path string) error {
	snap := w.Snapshot()
	if err := scene.WriteFile(path, &scene.Document{Worlds: []scene.World{snap}}); err != nil {
		return fmt.Errorf("save world %s: %w", w.name, err)
	}
	w.logger.Info("world saved", "path", path)
	return nil
}

func (w *World) period() time.Duration {
	if w.physics.RealTimeUpdateRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / w.physics.RealTimeUpdateRate)
}

func (w *World) loop(limit uint64, period time.Duration) {
	defer close(w.doneCh)
	defer w.running.Store(false)

	var tick <-chan time.Time
	if period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if limit > 0 && w.Iterations() >= limit {
			w.logger.Debug("iteration limit reached", "iterations", limit)
			return
		}

		if tick != nil {
			select {
			case <-w.stopCh:
				return
			case <-tick:
			}
		} else {
			select {
			case <-w.stopCh:
				return
			default:
			}
		}

		if w.paused.Load() {
			if tick == nil {
				time.Sleep(time.Millisecond)
			}
		} else {
			w.step()
		}
		w.publishStats()
	}
}

func (w *World) step() {
	w.mu.Lock()
	dt := w.physics.MaxStepSize
	g := *w.physics.Gravity
	for i, m := range w.def.Models {
		if m.Static {
			continue
		}
		w.integrator.Step(&w.bodies[i], g, dt)
	}
	w.iterations++
	w.simTime += dt
	w.mu.Unlock()
}

func (w *World) publishStats() {
	if w.engine.minimalComms.Load() {
		return
	}

	now := time.Now()
	w.mu.Lock()
	if now.Sub(w.lastStats) < statsInterval {
		w.mu.Unlock()
		return
	}
	w.lastStats = now
	stats := msgs.WorldStats{
		World:      string(w.name),
		Iterations: w.iterations,
		SimTime:    w.simTime,
		Paused:     w.paused.Load(),
		Stamp:      now,
	}
	w.mu.Unlock()

	if err := w.engine.pub.Publish(msgs.WorldStatsTopic(w.name), stats); err != nil {
		w.logger.Warn("publish world stats failed", "err", err)
	}
}
