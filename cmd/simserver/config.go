// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simforge/simserver/internal/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the server configuration",
	}

	cfgCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, path, err := config.Load(cmd.Context(), config.LoadOptions{FilePath: root.cfgFile})
				if err != nil {
					renderError(cmd.ErrOrStderr(), err, root.verbose)
					return &ExitError{Code: 1}
				}
				showConfig(cmd.OutOrStdout(), cfg, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Print the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := config.Load(cmd.Context(), config.LoadOptions{FilePath: root.cfgFile})
				if err != nil {
					renderError(cmd.ErrOrStderr(), err, root.verbose)
					return &ExitError{Code: 1}
				}
				data, err := config.CUE(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print where the configuration file is looked up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if root.cfgFile != "" {
					fmt.Fprintln(cmd.OutOrStdout(), root.cfgFile)
					return nil
				}
				dir, err := config.Dir()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, config.FileName))
				return nil
			},
		},
	)
	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	source := path
	if source == "" {
		source = "(defaults)"
	}

	fmt.Fprintln(w, TitleStyle.Render("Configuration"))
	fmt.Fprintf(w, "%s %s\n\n", SubtitleStyle.Render("Source:"), source)

	row := func(key, value string) {
		fmt.Fprintf(w, "  %-24s %s\n", KeyStyle.Render(key), value)
	}
	row("master_uri", cfg.MasterURI)
	row("resource_paths", orNone(strings.Join(cfg.ResourcePaths, ", ")))
	row("log.level", cfg.Log.Level)
	row("log.file", orNone(cfg.Log.File))
	row("namespace_wait.timeout", cfg.NamespaceWait.Timeout.String())
	row("namespace_wait.attempts", fmt.Sprint(cfg.NamespaceWait.Attempts))
	row("tick_interval", cfg.TickInterval.String())
	row("record.path", cfg.Record.Path)
	row("record.encoding", cfg.Record.Encoding)
	row("plugins", orNone(strings.Join(cfg.Plugins, ", ")))
	row("temp_dir", cfg.TempDir)
}

func orNone(s string) string {
	if s == "" {
		return SubtitleStyle.Render("(none)")
	}
	return s
}
