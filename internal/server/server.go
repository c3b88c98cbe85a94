// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/core/lifecycle"
	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/internal/plugin"
	"github.com/simforge/simserver/internal/record"
	"github.com/simforge/simserver/internal/sensors"
	"github.com/simforge/simserver/internal/spawn"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

const (
	// DefaultNamespaceTimeout is the wait per namespace attempt.
	DefaultNamespaceTimeout = time.Second
	// DefaultNamespaceAttempts bounds the namespace wait.
	DefaultNamespaceAttempts = 10
	// DefaultTickInterval is the run loop period.
	DefaultTickInterval = time.Millisecond

	inlineResource = "<inline>"
)

type (
	// NamespaceWaiter reports whether world namespaces became visible within
	// timeout.
	NamespaceWaiter interface {
		WaitForNamespaces(ctx context.Context, timeout time.Duration) bool
	}

	// Deps are the collaborators a Server drives. Bus, Engine, Sensors,
	// Loader and Spawner are required; Master and Player may be nil.
	// Namespaces defaults to Bus.
	Deps struct {
		Bus        *transport.Bus
		Master     *transport.Master
		Namespaces NamespaceWaiter
		Engine     *physics.Engine
		Sensors    *sensors.Manager
		Recorder   *record.Recorder
		Player     *record.Player
		Spawner    spawn.Spawner
		Plugins    *plugin.Host
		Loader     *scene.Loader
		Logger     *log.Logger
	}

	// Options are fixed at Bootstrap.
	Options struct {
		// Args are the process arguments handed to plugins.
		Args []string
		// Seed, when set, seeds the engine and sensor noise.
		Seed *uint64
		// Plugins are registry names to instantiate.
		Plugins []string
		// Physics overrides the engine type declared by the scene.
		Physics types.EngineName
		// Profile names a physics preset to apply after load.
		Profile      string
		MinimalComms bool

		NamespaceTimeout  time.Duration
		NamespaceAttempts int
		TickInterval      time.Duration

		// TempDir receives clone scene files.
		TempDir string
		// RecordPath and RecordEncoding are used when the params leave them unset.
		RecordPath     string
		RecordEncoding string

		// HandleSignals makes Run stop on SIGINT and SIGTERM.
		HandleSignals bool
	}

	// SceneSource is either a resource path or an inline CUE document. Inline
	// wins when both are set.
	SceneSource struct {
		Path   string
		Inline string
	}

	// Server is one simulation process.
	Server struct {
		deps    Deps
		logger  *log.Logger
		machine *lifecycle.Machine
		mailbox *Mailbox
		cloner  *CloneOrchestrator

		mu     sync.Mutex
		opts   Options
		params Params
		loaded bool
		sub    *transport.Subscription

		ran       atomic.Bool
		closeOnce sync.Once
	}
)

// New checks deps and returns a server in the created state.
func New(deps Deps) (*Server, error) {
	var missing []error
	if deps.Bus == nil {
		missing = append(missing, errors.New("bus"))
	}
	if deps.Engine == nil {
		missing = append(missing, errors.New("engine"))
	}
	if deps.Sensors == nil {
		missing = append(missing, errors.New("sensors"))
	}
	if deps.Loader == nil {
		missing = append(missing, errors.New("scene loader"))
	}
	if deps.Spawner == nil {
		missing = append(missing, errors.New("spawner"))
	}
	if len(missing) > 0 {
		return nil, startupErr(SubsystemInitFailed, "deps", fmt.Errorf("missing %w", errors.Join(missing...)))
	}

	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Namespaces == nil {
		deps.Namespaces = deps.Bus
	}
	if deps.Recorder == nil {
		deps.Recorder = record.NewRecorder(deps.Engine, record.WithLogger(deps.Logger))
	}
	if deps.Plugins == nil {
		deps.Plugins = plugin.NewHost(plugin.NewRegistry(), plugin.Deps{
			Bus:    deps.Bus,
			Worlds: deps.Engine,
			Logger: deps.Logger,
		})
	}

	return &Server{
		deps:    deps,
		logger:  logging.Sub(deps.Logger, "server"),
		machine: lifecycle.New(),
		mailbox: NewMailbox(),
		opts:    Options{}.withDefaults(),
		params:  Params{},
	}, nil
}

func (o Options) withDefaults() Options {
	if o.NamespaceTimeout <= 0 {
		o.NamespaceTimeout = DefaultNamespaceTimeout
	}
	if o.NamespaceAttempts <= 0 {
		o.NamespaceAttempts = DefaultNamespaceAttempts
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.RecordPath == "" {
		o.RecordPath = filepath.Join(os.TempDir(), "simserver", "log")
	}
	if o.RecordEncoding == "" {
		o.RecordEncoding = string(record.EncodingZlib)
	}
	return o
}

// Bootstrap prepares every subsystem that does not depend on the scene.
func (s *Server) Bootstrap(ctx context.Context, opts Options) error {
	if err := s.machine.Begin(ctx); err != nil {
		return startupErr(InvalidLifecycle, "", err)
	}

	opts = opts.withDefaults()
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()

	if opts.Seed != nil {
		s.deps.Engine.SetSeed(*opts.Seed)
		s.deps.Sensors.Reseed(*opts.Seed)
		s.deps.Recorder.SetSeed(*opts.Seed)
		s.logger.Info("random seed set", "seed", *opts.Seed)
	}
	s.deps.Engine.SetMinimalComms(opts.MinimalComms)

	for _, name := range opts.Plugins {
		if err := s.deps.Plugins.Add(name); err != nil {
			return s.fail(startupErr(SubsystemInitFailed, "plugin", err))
		}
	}
	if err := s.deps.Plugins.LoadAll(opts.Args); err != nil {
		return s.fail(startupErr(SubsystemInitFailed, "plugin", err))
	}

	if s.deps.Master != nil {
		if err := s.deps.Master.Start(ctx); err != nil {
			return s.fail(startupErr(SubsystemInitFailed, "master", err))
		}
	}

	s.cloner = NewCloneOrchestrator(s.deps.Engine, s.deps.Spawner,
		WithCloneHost(s.deps.Bus.MasterURI().Host),
		WithCloneDir(opts.TempDir),
		WithCloneLogger(s.deps.Logger),
	)
	return nil
}

func (s *Server) fail(err error) error {
	s.machine.Fail(err)
	s.deps.Plugins.Fini()
	return err
}

// LoadScene creates one world per world section of the scene and subscribes
// the control mailbox. It must succeed once before Run. An empty source
// replays the first entry of the playback log when a Player was given.
func (s *Server) LoadScene(ctx context.Context, src SceneSource) error {
	if state := s.machine.State(); state != lifecycle.StateStarting {
		return startupErr(InvalidLifecycle, "", fmt.Errorf("load scene in state %s", state))
	}
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return startupErr(InvalidLifecycle, "", errors.New("scene already loaded"))
	}

	if src.Path == "" && src.Inline == "" && s.deps.Player != nil {
		var err error
		if src, err = s.playbackSource(); err != nil {
			return err
		}
	}

	doc, resource, err := s.readScene(src)
	if err != nil {
		return err
	}
	s.overridePhysics(doc)

	for i := range doc.Worlds {
		def := &doc.Worlds[i]
		if _, err := s.loadWorld(types.WorldName(def.Name), def); err != nil {
			s.deps.Engine.RemoveWorlds()
			return loadErr(EngineRejected, resource, err)
		}
	}
	if err := s.deps.Engine.InitWorlds(); err != nil {
		s.deps.Engine.RemoveWorlds()
		return loadErr(EngineRejected, resource, err)
	}

	s.mu.Lock()
	profile := s.opts.Profile
	s.mu.Unlock()
	if profile != "" {
		if err := s.deps.Engine.ApplyProfile(profile); err != nil {
			s.logger.Error("physics profile not applied, keeping defaults", "profile", profile, "err", err)
		}
	}

	s.waitForNamespaces(ctx)

	sub := s.deps.Bus.Subscribe(msgs.TopicServerControl, s.onControl)

	if err := s.deps.Plugins.InitAll(s.machine.Context()); err != nil {
		sub.Unsubscribe()
		s.deps.Engine.RemoveWorlds()
		return startupErr(SubsystemInitFailed, "plugin", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("scene loaded", "resource", resource, "worlds", s.deps.Engine.WorldNames())
	return nil
}

func (s *Server) playbackSource() (SceneSource, error) {
	p := s.deps.Player
	s.logger.Info("playback",
		"log_version", p.LogVersion(),
		"server_version", p.ServerVersion(),
		"seed", p.RandSeed(),
		"start", p.Start(),
		"end", p.End(),
		"entries", p.Len(),
	)
	doc, err := p.Step()
	if err != nil {
		return SceneSource{}, loadErr(NotFound, "playback", fmt.Errorf("read first playback entry: %w", err))
	}
	return SceneSource{Inline: doc}, nil
}

func (s *Server) readScene(src SceneSource) (*scene.Document, string, error) {
	if src.Inline != "" {
		doc, err := scene.ParseString(src.Inline)
		if err != nil {
			return nil, inlineResource, loadErr(ParseFailed, inlineResource, err)
		}
		return doc, inlineResource, nil
	}

	data, err := s.deps.Loader.Read(src.Path)
	if err != nil {
		return nil, src.Path, loadErr(NotFound, src.Path, err)
	}
	doc, err := scene.Parse(data, src.Path)
	if err != nil {
		return nil, src.Path, loadErr(ParseFailed, src.Path, err)
	}
	return doc, src.Path, nil
}

// overridePhysics replaces the engine type of every world section. An
// unusable name leaves the document untouched.
func (s *Server) overridePhysics(doc *scene.Document) {
	s.mu.Lock()
	engine := s.opts.Physics
	s.mu.Unlock()
	if engine == "" {
		return
	}

	if err := engine.Validate(); err != nil {
		s.logger.Warn("ignoring physics override", "err", err)
		return
	}
	if !s.deps.Engine.IsRegistered(string(engine)) {
		s.logger.Warn("physics engine not registered, keeping the scene's engine",
			"engine", engine, "available", s.deps.Engine.Engines())
		return
	}
	for i := range doc.Worlds {
		if !doc.Worlds[i].SetPhysicsType(string(engine)) {
			s.logger.Warn("world has no physics section, engine not overridden",
				"world", doc.Worlds[i].Name, "engine", engine)
		}
	}
}

func (s *Server) loadWorld(name types.WorldName, def *scene.World) (*physics.World, error) {
	w, err := s.deps.Engine.CreateWorld(name)
	if err != nil {
		return nil, err
	}
	if err := w.Load(def); err != nil {
		s.deps.Engine.RemoveWorld(w.Name())
		return nil, err
	}
	return w, nil
}

func (s *Server) waitForNamespaces(ctx context.Context) {
	if s.deps.Engine.WorldCount() == 0 {
		return
	}

	s.mu.Lock()
	timeout, attempts := s.opts.NamespaceTimeout, s.opts.NamespaceAttempts
	s.mu.Unlock()

	for attempt := 1; attempt <= attempts; attempt++ {
		if s.deps.Namespaces.WaitForNamespaces(ctx, timeout) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("waiting for namespaces", "attempt", attempt, "of", attempts)
	}
	s.logger.Warn("no namespace advertised, continuing without", "attempts", attempts)
}

func (s *Server) onControl(data []byte) {
	ctrl, err := msgs.DecodeControl(data)
	if err != nil {
		s.logger.Warn("dropping malformed control message", "err", err)
		return
	}
	cmd, ok := ctrl.Command()
	if !ok {
		s.logger.Debug("control message carries no command")
		return
	}
	s.mailbox.Enqueue(cmd)
}

// Enqueue queues cmd for the next tick of the run loop.
func (s *Server) Enqueue(cmd msgs.Command) {
	s.mailbox.Enqueue(cmd)
}

// SetParams merges p into the startup parameters. Params are read when Run
// starts; later changes have no effect on the running worlds.
func (s *Server) SetParams(p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.params, p)
}

// Params returns a copy of the startup parameters.
func (s *Server) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.params)
}

// Run starts the worlds and blocks until a stop is requested or every world
// has finished, then tears everything down. It returns nil immediately when
// the server is already stopping.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	opts, loaded := s.opts, s.loaded
	s.mu.Unlock()

	if opts.HandleSignals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}
	defer context.AfterFunc(ctx, s.interrupt)()

	if s.machine.IsStopping() {
		s.Close()
		return nil
	}
	if !loaded {
		return startupErr(InvalidLifecycle, "", errors.New("run before a scene was loaded"))
	}
	if !s.ran.CompareAndSwap(false, true) {
		return startupErr(InvalidLifecycle, "", errors.New("run called more than once"))
	}
	defer s.Close()

	s.deps.Sensors.RunOnce(true)
	s.deps.Sensors.RunThreads(s.machine.Context())

	params := s.Params()
	iterations, err := params.Iterations()
	if err != nil {
		s.logger.Error("invalid iteration count, running without limit", "err", err)
	}
	if paused, err := params.Bool(ParamPause); err != nil {
		s.logger.Error("invalid pause value", "err", err)
	} else if paused {
		s.deps.Engine.PauseWorlds(true)
	}
	s.startRecording(params, opts)

	if err := s.deps.Engine.RunWorlds(iterations); err != nil {
		s.logger.Error("world failed to start", "err", err)
	}

	s.machine.MarkRunning()
	s.logger.Info("server running", "worlds", s.deps.Engine.WorldNames(), "iterations", iterations)

	s.loop(ctx, opts.TickInterval)
	return nil
}

func (s *Server) loop(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for !s.machine.IsStopping() && s.deps.Engine.WorldsRunning() {
		s.DrainAndDispatch(ctx)
		s.deps.Sensors.RunOnce(false)

		select {
		case <-ticker.C:
		case <-s.mailbox.Ready():
		case <-s.machine.Stopped():
		}
	}
}

func (s *Server) startRecording(params Params, opts Options) {
	on, err := params.Bool(ParamRecord)
	if err != nil {
		s.logger.Error("invalid record value", "err", err)
		return
	}
	if !on {
		return
	}

	encoding := params[ParamRecordEncoding]
	if encoding == "" {
		encoding = opts.RecordEncoding
	}
	dir := params[ParamRecordPath]
	if dir == "" {
		dir = opts.RecordPath
	}
	if _, err := s.deps.Recorder.Start(encoding, dir); err != nil {
		s.logger.Error("recording not started", "err", err)
	}
}

// interrupt handles a cancelled run context the way an operator's Ctrl-C is
// handled: stop, then tell plugins.
func (s *Server) interrupt() {
	if s.machine.RequestStop() {
		s.logger.Info("interrupted, shutting down")
		s.deps.Plugins.NotifyShutdown()
	}
}

// Stop requests shutdown. It is safe to call any number of times from any
// goroutine; the run loop exits within one tick.
func (s *Server) Stop() {
	if s.machine.RequestStop() {
		s.logger.Info("stop requested")
	}
}

// IsStopping reports whether a stop was requested.
func (s *Server) IsStopping() bool {
	return s.machine.IsStopping()
}

// Initialized reports whether the run loop is up and no stop was requested.
func (s *Server) Initialized() bool {
	return s.machine.IsRunning()
}

// State returns the lifecycle state.
func (s *Server) State() lifecycle.State {
	return s.machine.State()
}

// Close releases every subsystem. Run calls it on exit; call it directly when
// Run is never reached. It is idempotent.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.machine.RequestStop()

		s.mu.Lock()
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}

		s.deps.Sensors.Stop()
		if s.deps.Recorder.IsRunning() {
			if err := s.deps.Recorder.Stop(); err != nil {
				s.logger.Error("recording did not close cleanly", "err", err)
			}
		}
		s.deps.Engine.Fini()
		s.deps.Plugins.Fini()
		if s.deps.Master != nil {
			if err := s.deps.Master.Stop(); err != nil {
				s.logger.Warn("master did not stop cleanly", "err", err)
			}
		}
		s.deps.Bus.Close()
		s.machine.Finish()
		s.logger.Info("server stopped")
	})
}
