// SPDX-License-Identifier: MPL-2.0

package physics

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

type (
	// Publisher is the part of the bus a world needs.
	Publisher interface {
		Publish(topic string, v any) error
		AdvertiseNamespace(ns string)
		RemoveNamespace(ns string)
	}

	// Engine owns every world in the process.
	Engine struct {
		pub          Publisher
		logger       *log.Logger
		seed         uint64
		minimalComms atomic.Bool
		integrators  map[string]Integrator

		mu     sync.RWMutex
		worlds []*World
	}

	// Option configures an Engine.
	Option func(*Engine)
)

// WithLogger sets the parent logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = logging.Sub(l, "physics") }
}

// WithSeed records the random seed the process was started with.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithMinimalComms stops worlds from publishing statistics.
func WithMinimalComms(on bool) Option {
	return func(e *Engine) { e.minimalComms.Store(on) }
}

// WithIntegrator registers an additional physics type.
func WithIntegrator(name string, in Integrator) Option {
	return func(e *Engine) { e.integrators[name] = in }
}

// NewEngine creates an engine publishing through pub.
func NewEngine(pub Publisher, opts ...Option) *Engine {
	e := &Engine{
		pub:         pub,
		logger:      logging.Discard(),
		integrators: defaultIntegrators(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed returns the random seed.
func (e *Engine) Seed() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seed
}

// SetSeed replaces the random seed.
func (e *Engine) SetSeed(seed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seed = seed
}

// SetMinimalComms toggles world statistics publishing.
func (e *Engine) SetMinimalComms(on bool) {
	e.minimalComms.Store(on)
}

// IsRegistered reports whether name is a known physics type.
func (e *Engine) IsRegistered(name string) bool {
	_, ok := e.integrators[name]
	return ok
}

// Engines lists the registered physics types.
func (e *Engine) Engines() []string {
	return slices.Sorted(maps.Keys(e.integrators))
}

func (e *Engine) integrator(name string) (Integrator, bool) {
	in, ok := e.integrators[name]
	return in, ok
}

// CreateWorld adds an empty world. Names must be unique.
func (e *Engine) CreateWorld(name types.WorldName) (*World, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		name = types.DefaultWorldName
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.worlds {
		if w.name == name {
			return nil, fmt.Errorf("create world %s: %w", name, ErrWorldExists)
		}
	}
	w := newWorld(name, e)
	e.worlds = append(e.worlds, w)
	return w, nil
}

// InitWorlds initializes every world.
func (e *Engine) InitWorlds() error {
	var errs []error
	for _, w := range e.Worlds() {
		errs = append(errs, w.Init())
	}
	return errors.Join(errs...)
}

// RunWorlds starts every world that is not yet running.
func (e *Engine) RunWorlds(iterations uint64) error {
	var errs []error
	for _, w := range e.Worlds() {
		if w.IsRunning() {
			continue
		}
		errs = append(errs, w.Run(iterations))
	}
	return errors.Join(errs...)
}

// PauseWorlds pauses or resumes every world.
func (e *Engine) PauseWorlds(paused bool) {
	for _, w := range e.Worlds() {
		w.SetPaused(paused)
	}
}

// StopWorlds stops every world goroutine without removing the worlds.
func (e *Engine) StopWorlds() {
	for _, w := range e.Worlds() {
		w.Stop()
	}
}

// RemoveWorld stops and removes one world.
func (e *Engine) RemoveWorld(name types.WorldName) {
	e.mu.Lock()
	var removed *World
	e.worlds = slices.DeleteFunc(e.worlds, func(w *World) bool {
		if w.name == name {
			removed = w
			return true
		}
		return false
	})
	e.mu.Unlock()

	if removed != nil {
		removed.Stop()
		e.pub.RemoveNamespace(msgs.WorldNamespace(name))
	}
}

// RemoveWorlds stops and removes every world.
func (e *Engine) RemoveWorlds() {
	e.mu.Lock()
	all := e.worlds
	e.worlds = nil
	e.mu.Unlock()

	for _, w := range all {
		w.Stop()
		e.pub.RemoveNamespace(msgs.WorldNamespace(w.name))
	}
	if len(all) > 0 {
		e.logger.Debug("worlds removed", "count", len(all))
	}
}

// Worlds returns the worlds in creation order.
func (e *Engine) Worlds() []*World {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.worlds)
}

// WorldCount returns the number of worlds.
func (e *Engine) WorldCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.worlds)
}

// WorldNames lists the world names in creation order.
func (e *Engine) WorldNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.worlds))
	for i, w := range e.worlds {
		names[i] = string(w.name)
	}
	return names
}

// ResolveWorld finds a world by name. An empty name resolves to the first
// world, which is the only one in the usual single-world setup.
func (e *Engine) ResolveWorld(name types.WorldName) (*World, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if name == "" {
		if len(e.worlds) == 0 {
			return nil, &WorldNotFoundError{}
		}
		return e.worlds[0], nil
	}
	for _, w := range e.worlds {
		if w.name == name {
			return w, nil
		}
	}
	return nil, &WorldNotFoundError{Name: name}
}

// WorldsRunning reports whether any world goroutine is active.
func (e *Engine) WorldsRunning() bool {
	return slices.ContainsFunc(e.Worlds(), (*World).IsRunning)
}

// ApplyProfile applies the named physics preset to every world carrying it.
func (e *Engine) ApplyProfile(name string) error {
	applied := 0
	for _, w := range e.Worlds() {
		if w.ApplyPreset(name) {
			applied++
		}
	}
	if applied == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	e.logger.Info("physics profile applied", "profile", name, "worlds", applied)
	return nil
}

// Snapshot captures every world as one scene document.
func (e *Engine) Snapshot() *scene.Document {
	worlds := e.Worlds()
	doc := &scene.Document{Worlds: make([]scene.World, 0, len(worlds))}
	for _, w := range worlds {
		doc.Worlds = append(doc.Worlds, w.Snapshot())
	}
	return doc
}

// Fini stops and removes every world.
func (e *Engine) Fini() {
	e.RemoveWorlds()
}
