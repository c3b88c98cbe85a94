// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"

	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/pkg/scene"
)

// DrainAndDispatch executes every queued command in arrival order and
// returns how many were taken from the mailbox. A failing command is logged
// and does not affect the rest of the batch.
//
// Commands swap and save worlds without further locking, so calls must not
// overlap. Run calls it once per tick; outside of Run, call it from a single
// goroutine and use Enqueue everywhere else.
func (s *Server) DrainAndDispatch(ctx context.Context) int {
	cmds := s.mailbox.Drain()
	for _, cmd := range cmds {
		if err := s.dispatch(ctx, cmd); err != nil {
			s.logger.Error("control command failed", "err", &CommandError{Command: cmd.Name(), Err: err})
		}
	}
	return len(cmds)
}

func (s *Server) dispatch(ctx context.Context, cmd msgs.Command) error {
	s.logger.Debug("dispatching", "command", cmd.Name())

	switch c := cmd.(type) {
	case msgs.CloneCommand:
		return s.clone(ctx, c)
	case msgs.SaveWorldCommand:
		return s.saveWorld(c)
	case msgs.NewWorldCommand:
		return s.openWorld(ctx, scene.EmptyWorld)
	case msgs.OpenWorldCommand:
		return s.openWorld(ctx, c.Path)
	case msgs.StopCommand:
		s.Stop()
		return nil
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

// clone always publishes a WorldModify, whether or not the clone started.
func (s *Server) clone(ctx context.Context, c msgs.CloneCommand) error {
	res, err := s.cloner.Clone(ctx, CloneRequest{World: c.World, Port: c.Port})

	note := msgs.WorldModify{WorldName: res.World, Cloned: err == nil}
	if err == nil {
		note.ClonedURI = res.URI
	}
	if perr := s.deps.Bus.Publish(msgs.TopicWorldModify, note); perr != nil {
		s.logger.Warn("clone notification not published", "err", perr)
	}
	return err
}

func (s *Server) saveWorld(c msgs.SaveWorldCommand) error {
	w, err := s.deps.Engine.ResolveWorld(c.World)
	if err != nil {
		return err
	}
	if c.Path == "" {
		return fmt.Errorf("save world %s: %w", w.Name(), ErrNoFilename)
	}
	return w.Save(c.Path)
}
