// SPDX-License-Identifier: MPL-2.0

// Package plugin hosts in-process server plugins.
//
// Plugins are registered by name in a Registry and instantiated by a Host when
// the server is asked for them on the command line. The host hands every plugin
// the captured process arguments, initializes them once the scene is loaded,
// notifies them on interrupt and finalizes them at teardown.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
)

// ErrUnknownPlugin is returned when a plugin name is not registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

type (
	// Plugin is a server extension.
	Plugin interface {
		Name() string
		// Load receives the process arguments before the scene is loaded.
		Load(args []string) error
		// Init runs after the scene is loaded. ctx is cancelled at shutdown.
		Init(ctx context.Context) error
		// Fini releases everything Init started.
		Fini()
	}

	// ShutdownNotifier is implemented by plugins that want to hear about an
	// interrupt before teardown starts.
	ShutdownNotifier interface {
		OnShutdown()
	}

	// Publisher is the part of the bus plugins may use.
	Publisher interface {
		Publish(topic string, v any) error
	}

	// WorldLister reports the loaded worlds.
	WorldLister interface {
		WorldNames() []string
	}

	// Deps are handed to every plugin factory.
	Deps struct {
		Bus     Publisher
		Worlds  WorldLister
		Logger  *log.Logger
		Version string
	}

	// Factory creates a plugin instance.
	Factory func(Deps) Plugin

	// Registry maps plugin names to factories.
	Registry struct {
		mu        sync.RWMutex
		factories map[string]Factory
	}

	// Host owns the plugin instances of one server.
	Host struct {
		reg    *Registry
		deps   Deps
		logger *log.Logger

		mu      sync.Mutex
		plugins []Plugin
		cancel  context.CancelFunc
	}
)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtins returns a registry holding the plugins that ship with the server.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register(HeartbeatName, NewHeartbeat)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered plugin names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// NewHost creates a host drawing plugins from reg.
func NewHost(reg *Registry, deps Deps) *Host {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Host{
		reg:    reg,
		deps:   deps,
		logger: logging.Sub(deps.Logger, "plugin"),
	}
}

// Add instantiates the named plugin. Adding a name twice is a no-op.
func (h *Host) Add(name string) error {
	f, ok := h.reg.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownPlugin, name, h.reg.Names())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if slices.ContainsFunc(h.plugins, func(p Plugin) bool { return p.Name() == name }) {
		return nil
	}
	h.plugins = append(h.plugins, f(h.deps))
	h.logger.Debug("plugin added", "name", name)
	return nil
}

// Names lists the added plugins in the order they were added.
func (h *Host) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.plugins))
	for i, p := range h.plugins {
		names[i] = p.Name()
	}
	return names
}

// LoadAll passes args to every plugin. The first failure stops the sequence.
func (h *Host) LoadAll(args []string) error {
	for _, p := range h.snapshot() {
		if err := p.Load(slices.Clone(args)); err != nil {
			return fmt.Errorf("load plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// InitAll initializes every plugin. The first failure stops the sequence.
func (h *Host) InitAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	for _, p := range h.snapshot() {
		if err := p.Init(ctx); err != nil {
			return fmt.Errorf("init plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// NotifyShutdown tells every ShutdownNotifier plugin an interrupt arrived.
func (h *Host) NotifyShutdown() {
	for _, p := range h.snapshot() {
		if n, ok := p.(ShutdownNotifier); ok {
			n.OnShutdown()
		}
	}
}

// Fini finalizes every plugin in reverse order.
func (h *Host) Fini() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	plugins := h.plugins
	h.plugins = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, p := range slices.Backward(plugins) {
		p.Fini()
	}
}

func (h *Host) snapshot() []Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.plugins)
}
