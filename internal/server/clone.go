// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/internal/spawn"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/pkg/types"
)

type (
	// WorldResolver finds a world by name; an empty name means the first world.
	WorldResolver interface {
		ResolveWorld(name types.WorldName) (*physics.World, error)
	}

	// CloneRequest asks for a world to be copied into a new process whose bus
	// master listens on Port.
	CloneRequest struct {
		World types.WorldName
		Port  types.ListenPort
	}

	// CloneResult describes a clone attempt. World is filled in even when the
	// attempt fails, as far as it could be determined.
	CloneResult struct {
		World string
		URI   string
		Path  string
		PID   int
	}

	// CloneOrchestrator saves a world and starts a server process on it.
	CloneOrchestrator struct {
		worlds  WorldResolver
		spawner spawn.Spawner
		host    string
		dir     string
		exe     string
		logger  *log.Logger
	}

	// CloneOption configures a CloneOrchestrator.
	CloneOption func(*CloneOrchestrator)
)

// WithCloneHost sets the host part of the clone's master URI.
func WithCloneHost(host string) CloneOption {
	return func(o *CloneOrchestrator) { o.host = host }
}

// WithCloneDir sets where clone scene files are written.
func WithCloneDir(dir string) CloneOption {
	return func(o *CloneOrchestrator) { o.dir = dir }
}

// WithCloneExecutable sets the binary to start. The default is the running one.
func WithCloneExecutable(path string) CloneOption {
	return func(o *CloneOrchestrator) { o.exe = path }
}

// WithCloneLogger sets the parent logger.
func WithCloneLogger(l *log.Logger) CloneOption {
	return func(o *CloneOrchestrator) { o.logger = logging.Sub(l, "clone") }
}

// NewCloneOrchestrator creates an orchestrator.
func NewCloneOrchestrator(worlds WorldResolver, spawner spawn.Spawner, opts ...CloneOption) *CloneOrchestrator {
	o := &CloneOrchestrator{
		worlds:  worlds,
		spawner: spawner,
		host:    "localhost",
		dir:     os.TempDir(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScenePath is where the scene for a clone on port is written.
func (o *CloneOrchestrator) ScenePath(port types.ListenPort) string {
	return filepath.Join(o.dir, fmt.Sprintf("clone.%d.world", port))
}

// Clone saves the requested world to ScenePath(port) and starts a server on
// it with SIMSERVER_MASTER_URI pointing at the new port. The child is not
// supervised.
func (o *CloneOrchestrator) Clone(ctx context.Context, req CloneRequest) (CloneResult, error) {
	res := CloneResult{World: string(req.World)}

	w, err := o.worlds.ResolveWorld(req.World)
	if err != nil {
		return res, fmt.Errorf("clone: %w", err)
	}
	if res.World == "" {
		res.World = string(w.Name())
	}
	if err := req.Port.Validate(); err != nil {
		return res, fmt.Errorf("clone %s: %w", res.World, err)
	}

	path := o.ScenePath(req.Port)
	if err := w.Save(path); err != nil {
		return res, fmt.Errorf("clone %s: %w", res.World, err)
	}

	uri := msgs.CloneURI(o.host, req.Port)
	proc, err := o.spawner.Spawn(ctx, spawn.Spec{
		Path: o.exe,
		Args: []string{path},
		Env:  map[string]string{transport.MasterURIEnv: uri},
	})
	if err != nil {
		return res, &SpawnError{Port: req.Port, Err: err}
	}

	res.URI, res.Path, res.PID = uri, path, proc.PID
	o.logger.Info("world cloned", "world", res.World, "uri", uri, "pid", proc.PID)
	o.logger.Info("connect to the clone with", "env", spawn.ExportLine(transport.MasterURIEnv, uri))
	return res, nil
}
