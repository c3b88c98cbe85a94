// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simforge/simserver/internal/plugin"
)

func newPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins built into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("Server plugins"))
			for _, name := range plugin.Builtins().Names() {
				fmt.Fprintf(out, "  %s\n", KeyStyle.Render(name))
			}
			fmt.Fprintf(out, "\n%s\n", SubtitleStyle.Render("Load one with -s <name> or the plugins configuration key."))
			return nil
		},
	}
}
