// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/simforge/simserver/internal/config"
	"github.com/simforge/simserver/internal/issue"
	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/physics"
	"github.com/simforge/simserver/internal/plugin"
	"github.com/simforge/simserver/internal/record"
	"github.com/simforge/simserver/internal/sensors"
	"github.com/simforge/simserver/internal/server"
	"github.com/simforge/simserver/internal/spawn"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/internal/watch"
	"github.com/simforge/simserver/pkg/scene"
	"github.com/simforge/simserver/pkg/types"
)

func runServer(cmd *cobra.Command, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	cfg, _, err := config.Load(ctx, config.LoadOptions{FilePath: opts.cfgFile})
	if err != nil {
		renderError(stderr, err, opts.verbose)
		return &ExitError{Code: 1}
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: opts.verbose,
		File:    cfg.Log.File,
		Output:  stderr,
	})
	if err != nil {
		renderError(stderr, issue.NewErrorContext().
			WithOperation("set up logging").
			WithSuggestion("log.level must be one of debug, info, warn or error").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError(), opts.verbose)
		return &ExitError{Code: 1}
	}
	defer func() { _ = closeLog() }()

	srv, err := buildServer(cfg, opts, logger)
	if err != nil {
		renderError(stderr, err, opts.verbose)
		return &ExitError{Code: 1}
	}
	defer srv.Close()

	if err := srv.Bootstrap(ctx, bootstrapOptions(cfg, opts)); err != nil {
		renderError(stderr, err, opts.verbose)
		return &ExitError{Code: 1}
	}
	srv.SetParams(opts.params())

	src := server.SceneSource{}
	switch {
	case len(args) > 0:
		src.Path = args[0]
	case opts.play == "":
		src.Path = scene.EmptyWorld
	}
	if err := srv.LoadScene(ctx, src); err != nil {
		renderError(stderr, err, opts.verbose)
		return &ExitError{Code: 1}
	}

	if opts.watch {
		stopWatch, err := watchScene(ctx, srv, args[0], logger)
		if err != nil {
			logger.Warn("not watching the world file", "err", err)
		} else {
			defer stopWatch()
		}
	}

	if err := srv.Run(ctx); err != nil {
		renderError(stderr, err, opts.verbose)
		return &ExitError{Code: 1}
	}
	return nil
}

// buildServer wires every collaborator of the server.
func buildServer(cfg *config.Config, opts *rootOptions, logger *log.Logger) (*server.Server, error) {
	uri, err := transport.ParseURI(cfg.MasterURI)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse master URI").
			WithResource(cfg.MasterURI).
			WithSuggestion("Use the form http://host:port").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	bus := transport.NewBus(uri, logger)
	engine := physics.NewEngine(bus, physics.WithLogger(logger))

	deps := server.Deps{
		Bus:      bus,
		Master:   transport.NewMaster(bus, logger),
		Engine:   engine,
		Sensors:  sensors.NewManager(engine, bus, sensors.WithLogger(logger)),
		Recorder: record.NewRecorder(engine, record.WithLogger(logger), record.WithServerVersion(Version)),
		Spawner:  spawn.NewExecSpawner(logger),
		Plugins: plugin.NewHost(plugin.Builtins(), plugin.Deps{
			Bus:     bus,
			Worlds:  engine,
			Logger:  logger,
			Version: Version,
		}),
		Loader: scene.NewLoader(cfg.ResourcePaths...),
		Logger: logger,
	}

	if opts.play != "" {
		player, err := record.Open(opts.play)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("open state log").
				WithResource(opts.play).
				WithSuggestion("Pass the state.log file inside a recording directory").
				WithIssue(issue.PlaybackFailedId).
				Wrap(err).
				BuildError()
		}
		deps.Player = player
	}

	return server.New(deps)
}

func bootstrapOptions(cfg *config.Config, opts *rootOptions) server.Options {
	out := server.Options{
		Args:              os.Args[1:],
		Plugins:           append(append([]string(nil), cfg.Plugins...), opts.plugins...),
		Physics:           types.EngineName(opts.physics),
		Profile:           opts.profile,
		MinimalComms:      opts.minimalComms,
		NamespaceTimeout:  cfg.NamespaceWait.Timeout,
		NamespaceAttempts: cfg.NamespaceWait.Attempts,
		TickInterval:      cfg.TickInterval,
		TempDir:           cfg.TempDir,
		RecordPath:        cfg.Record.Path,
		RecordEncoding:    cfg.Record.Encoding,
		HandleSignals:     true,
	}
	if opts.seedSet {
		seed := opts.seed
		out.Seed = &seed
	}
	return out
}

// params turns the flags into the startup parameters read by Run.
func (o *rootOptions) params() map[string]string {
	p := map[string]string{
		server.ParamPause:  strconv.FormatBool(o.pause),
		server.ParamRecord: strconv.FormatBool(o.record),
	}
	if o.recordEncoding != "" {
		p[server.ParamRecordEncoding] = o.recordEncoding
	}
	if o.recordPath != "" {
		p[server.ParamRecordPath] = o.recordPath
	}
	if o.iterations > 0 {
		p[server.ParamIterations] = strconv.FormatUint(o.iterations, 10)
	}
	return p
}

// watchScene reopens path through the control mailbox every time it, or a
// file next to it, changes. The returned func stops the watcher.
func watchScene(ctx context.Context, srv *server.Server, path string, logger *log.Logger) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}

	w, err := watch.New(watch.Config{
		Path:   abs,
		Also:   []string{"**/*.world", "**/*.yaml", "**/*.yml"},
		Logger: logger,
		OnChange: func(_ context.Context, changed []string) error {
			logger.Info("world file changed, reopening", "changed", changed)
			srv.Enqueue(msgs.OpenWorldCommand{Path: abs})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world file watcher stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
