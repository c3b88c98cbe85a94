// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/simforge/simserver/internal/issue"
	"github.com/simforge/simserver/internal/server"
)

const (
	subsystemMaster = "master"
	subsystemPlugin = "plugin"
)

// classifyStartupError maps a server failure to an issue catalog id and returns
// the styled message for the terminal. A zero id means no catalog entry fits.
func classifyStartupError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	var (
		ae *issue.ActionableError
		le *server.LoadError
		se *server.StartupError
	)
	switch {
	case errors.As(err, &ae):
		issueID = ae.Issue
	case errors.As(err, &le):
		switch le.Kind {
		case server.NotFound:
			issueID = issue.SceneNotFoundId
		case server.ParseFailed:
			issueID = issue.SceneParseFailedId
		case server.EngineRejected:
			issueID = issue.EngineRejectedId
		}
	case errors.As(err, &se):
		switch se.Subsystem {
		case subsystemMaster:
			issueID = issue.MasterStartFailedId
		case subsystemPlugin:
			issueID = issue.PluginLoadFailedId
		}
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay renders ActionableErrors with their suggestions and
// turns server errors into actionable ones before rendering.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	if ae = actionable(err); ae != nil {
		return ae.Format(verbose)
	}
	return err.Error()
}

func actionable(err error) *issue.ActionableError {
	var (
		le *server.LoadError
		se *server.StartupError
	)
	switch {
	case errors.As(err, &le):
		ctx := issue.NewErrorContext().WithOperation("load scene").WithResource(le.Resource).Wrap(le.Err)
		switch le.Kind {
		case server.NotFound:
			ctx.WithSuggestion("Check the path or add its directory to resource_paths")
		case server.ParseFailed:
			ctx.WithSuggestion("Run the file through `cue vet` or fix the field named above")
		case server.EngineRejected:
			ctx.WithSuggestion("Pick a registered physics engine with -e")
		}
		return ctx.Build()
	case errors.As(err, &se):
		op := "start server"
		if se.Subsystem != "" {
			op = "start " + strings.ReplaceAll(se.Subsystem, "_", " ")
		}
		ctx := issue.NewErrorContext().WithOperation(op).Wrap(se.Err)
		switch se.Subsystem {
		case subsystemMaster:
			ctx.WithSuggestion("Another server may own the master port; set SIMSERVER_MASTER_URI to a free one")
		case subsystemPlugin:
			ctx.WithSuggestion("Run `simserver plugins` to list the plugins built into this binary")
		}
		return ctx.Build()
	}
	return nil
}

// renderError prints the styled message followed by the catalog guide for
// its issue, when there is one.
func renderError(stderr io.Writer, err error, verbose bool) {
	issueID, styled := classifyStartupError(err, verbose)
	fmt.Fprint(stderr, styled)
	if issueID == 0 {
		return
	}
	if entry := issue.Get(issueID); entry != nil {
		if rendered, renderErr := entry.Render("dark"); renderErr == nil {
			fmt.Fprint(stderr, rendered)
		}
	}
}
