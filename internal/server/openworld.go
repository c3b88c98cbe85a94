// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"

	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

// openWorld replaces every loaded world with the first world of the scene at
// path, loaded under the name "default". The current worlds, sensor state and
// undelivered bus messages are dropped before the new scene is read, so a
// failure leaves the server with no worlds. The new world runs without an
// iteration limit.
//
// Only the run loop calls it, through DrainAndDispatch. Other goroutines send
// msgs.OpenWorldCommand with Enqueue.
func (s *Server) openWorld(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("open world %s: %w", path, err)
	}
	s.logger.Info("opening world", "path", path)

	s.deps.Engine.RemoveWorlds()
	s.deps.Sensors.RemoveSensors()
	s.deps.Bus.ClearBuffers()

	data, err := s.deps.Loader.Read(path)
	if err != nil {
		return loadErr(NotFound, path, err)
	}
	doc, err := scene.Parse(data, path)
	if err != nil {
		return loadErr(ParseFailed, path, err)
	}
	if !doc.HasWorld() {
		return loadErr(ParseFailed, path, ErrNoWorldSection)
	}

	w, err := s.loadWorld(types.DefaultWorldName, &doc.Worlds[0])
	if err != nil {
		return loadErr(EngineRejected, path, err)
	}
	if err := w.Init(); err != nil {
		s.deps.Engine.RemoveWorld(w.Name())
		return loadErr(EngineRejected, path, err)
	}

	if err := w.Run(0); err != nil {
		s.deps.Engine.RemoveWorld(w.Name())
		return loadErr(EngineRejected, path, err)
	}

	s.logger.Info("world opened", "path", path, "models", len(doc.Worlds[0].Models))
	return nil
}
