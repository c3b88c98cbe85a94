// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootOptions holds every flag of the root command.
type rootOptions struct {
	verbose bool
	cfgFile string

	physics        string
	play           string
	record         bool
	recordEncoding string
	recordPath     string
	seed           uint64
	seedSet        bool
	iterations     uint64
	minimalComms   bool
	plugins        []string
	profile        string
	pause          bool
	watch          bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "simserver [world_file]",
		Short: "Headless physics simulation server",
		Long: TitleStyle.Render("simserver") + SubtitleStyle.Render(" - headless physics simulation server") + `

simserver loads a world file, steps its physics and sensors, and serves
control requests from other processes through its master endpoint.
Without a world file the built-in empty world is loaded.

` + SubtitleStyle.Render("Examples:") + `
  simserver                         Run the empty world
  simserver worlds/arena.world -u   Load arena paused
  simserver -r --record_encoding zstd worlds/arena.world
  simserver -p ~/.simserver/log/20260101T120000/state.log
  simserver control clone default --port 11346`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Plugins read their own flags from the raw arguments.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(args); err != nil {
				return err
			}
			opts.seedSet = cmd.Flags().Changed("seed")
			return runServer(cmd, opts, args)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/simserver/config.cue)")

	f := root.Flags()
	f.StringVarP(&opts.physics, "physics", "e", "", "physics engine to use instead of the one in the world file")
	f.StringVarP(&opts.play, "play", "p", "", "play back a state log instead of loading a world file")
	f.BoolVarP(&opts.record, "record", "r", false, "record the simulation state")
	f.StringVar(&opts.recordEncoding, "record_encoding", "", "state log compression: zlib, zstd or txt")
	f.StringVar(&opts.recordPath, "record_path", "", "directory that receives state logs")
	f.Uint64Var(&opts.seed, "seed", 0, "random number generator seed")
	f.Uint64Var(&opts.iterations, "iters", 0, "stop after this many iterations (0 runs forever)")
	f.BoolVar(&opts.minimalComms, "minimal_comms", false, "publish as few messages as possible")
	f.StringArrayVarP(&opts.plugins, "server-plugin", "s", nil, "load a server plugin by name (repeatable)")
	f.StringVarP(&opts.profile, "profile", "o", "", "physics preset to apply after loading")
	f.BoolVarP(&opts.pause, "pause", "u", false, "start the world paused")
	f.BoolVarP(&opts.watch, "watch", "w", false, "reopen the world file when it changes on disk")

	root.AddCommand(newControlCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	root.AddCommand(newPluginsCommand())
	return root
}

func (o *rootOptions) validate(args []string) error {
	if o.play != "" && len(args) > 0 {
		return errors.New("a world file and a state log cannot be used together")
	}
	if o.watch && len(args) == 0 {
		return errors.New("--watch needs a world file")
	}
	return nil
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command line. It is called by main.main.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
