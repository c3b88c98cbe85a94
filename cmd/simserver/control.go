// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/simforge/simserver/internal/config"
	"github.com/simforge/simserver/internal/msgs"
	"github.com/simforge/simserver/internal/transport"
	"github.com/simforge/simserver/pkg/types"
)

const defaultCloneTimeout = 10 * time.Second

// errCloneTimeout is returned when no clone notification arrives in time.
var errCloneTimeout = errors.New("no clone notification received")

type controlOptions struct {
	root      *rootOptions
	masterURI string
}

func newControlCommand(root *rootOptions) *cobra.Command {
	opts := &controlOptions{root: root}

	control := &cobra.Command{
		Use:   "control",
		Short: "Send control requests to a running server",
		Long: `Send control requests to a running server through its master endpoint.

The endpoint comes from --master-uri, then SIMSERVER_MASTER_URI, then the
master_uri configuration key.`,
	}
	control.PersistentFlags().StringVar(&opts.masterURI, "master-uri", "", "master endpoint of the target server")

	control.AddCommand(
		newCloneCommand(opts),
		&cobra.Command{
			Use:   "save <world> <file>",
			Short: "Save a world to a file on the server host",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := filepath.Abs(args[1])
				if err != nil {
					return err
				}
				return opts.send(cmd, msgs.SaveWorldCommand{World: types.WorldName(args[0]), Path: path})
			},
		},
		&cobra.Command{
			Use:   "open <file>",
			Short: "Replace the running worlds with a scene file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := args[0]
				// Local paths are made absolute; anything else is left for the
				// server's resource paths.
				if _, err := os.Stat(path); err == nil {
					if abs, err := filepath.Abs(path); err == nil {
						path = abs
					}
				}
				return opts.send(cmd, msgs.OpenWorldCommand{Path: path})
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Replace the running worlds with the empty world",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.send(cmd, msgs.NewWorldCommand{})
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.send(cmd, msgs.StopCommand{})
			},
		},
	)
	return control
}

func newCloneCommand(opts *controlOptions) *cobra.Command {
	var (
		port    int
		timeout time.Duration
	)
	clone := &cobra.Command{
		Use:   "clone [world]",
		Short: "Copy a world into a new server process",
		Long: `Copy a world into a new server process listening on --port.

Without a world name the server's first world is cloned. The command waits
for the server to report the outcome and exits non-zero when the clone failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := msgs.CloneCommand{Port: types.ListenPort(port)}
			if len(args) > 0 {
				req.World = types.WorldName(args[0])
			}
			return opts.clone(cmd, req, timeout)
		},
	}
	clone.Flags().IntVar(&port, "port", 0, "master port of the clone")
	clone.Flags().DurationVar(&timeout, "timeout", defaultCloneTimeout, "how long to wait for the outcome")
	_ = clone.MarkFlagRequired("port")
	return clone
}

func (o *controlOptions) resolveURI(ctx context.Context) (transport.URI, error) {
	if o.masterURI != "" {
		return transport.ParseURI(o.masterURI)
	}
	cfg, _, err := config.Load(ctx, config.LoadOptions{FilePath: o.root.cfgFile})
	if err != nil {
		return transport.URIFromEnv("")
	}
	return transport.ParseURI(cfg.MasterURI)
}

func (o *controlOptions) dial(ctx context.Context) (*transport.Client, transport.URI, error) {
	uri, err := o.resolveURI(ctx)
	if err != nil {
		return nil, transport.URI{}, err
	}
	client, err := transport.Dial(ctx, uri)
	if err != nil {
		return nil, uri, err
	}
	return client, uri, nil
}

// send publishes one control request.
func (o *controlOptions) send(cmd *cobra.Command, c msgs.Command) error {
	client, uri, err := o.dial(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Publish(msgs.TopicServerControl, msgs.ControlFor(c)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s request sent to %s\n",
		SuccessStyle.Render("✓"), c.Name(), KeyStyle.Render(uri.String()))
	return nil
}

// clone publishes a clone request and waits for the WorldModify notification.
func (o *controlOptions) clone(cmd *cobra.Command, req msgs.CloneCommand, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, _, err := o.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	notes, err := client.Subscribe(msgs.TopicWorldModify)
	if err != nil {
		return err
	}
	if err := client.Publish(msgs.TopicServerControl, msgs.ControlFor(req)); err != nil {
		return err
	}

	var note msgs.WorldModify
	select {
	case data := <-notes:
		if err := json.Unmarshal(data, &note); err != nil {
			return fmt.Errorf("decode world modify: %w", err)
		}
	case <-client.Done():
		if err := client.Err(); err != nil {
			return err
		}
		return errCloneTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w within %s", errCloneTimeout, timeout)
	}

	out := cmd.OutOrStdout()
	if !note.Cloned {
		fmt.Fprintf(out, "%s world %q was not cloned\n", ErrorStyle.Render("✗"), note.WorldName)
		return &ExitError{Code: 1}
	}
	fmt.Fprintf(out, "%s world %q cloned to %s\n",
		SuccessStyle.Render("✓"), note.WorldName, KeyStyle.Render(note.ClonedURI))
	return nil
}
