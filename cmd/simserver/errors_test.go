// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simforge/simserver/internal/issue"
	"github.com/simforge/simserver/internal/server"
)

func TestClassifyStartupError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"scene not found", &server.LoadError{Kind: server.NotFound, Resource: "lab.world", Err: os.ErrNotExist}, issue.SceneNotFoundId},
		{"scene parse failed", &server.LoadError{Kind: server.ParseFailed, Resource: "lab.world", Err: cause}, issue.SceneParseFailedId},
		{"engine rejected", &server.LoadError{Kind: server.EngineRejected, Resource: "lab.world", Err: cause}, issue.EngineRejectedId},
		{"master", &server.StartupError{Kind: server.SubsystemInitFailed, Subsystem: "master", Err: cause}, issue.MasterStartFailedId},
		{"plugin", &server.StartupError{Kind: server.SubsystemInitFailed, Subsystem: "plugin", Err: cause}, issue.PluginLoadFailedId},
		{"lifecycle", &server.StartupError{Kind: server.InvalidLifecycle, Err: cause}, 0},
		{"wrapped load error", fmt.Errorf("run: %w", &server.LoadError{Kind: server.NotFound, Err: cause}), issue.SceneNotFoundId},
		{"actionable", issue.NewErrorContext().WithOperation("load config").WithIssue(issue.ConfigLoadFailedId).Wrap(cause).BuildError(), issue.ConfigLoadFailedId},
		{"plain", cause, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, msg := classifyStartupError(tt.err, false)
			assert.Equal(t, tt.want, id)
			assert.Contains(t, msg, "Error:")
		})
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	err := &server.LoadError{Kind: server.NotFound, Resource: "lab.world", Err: os.ErrNotExist}
	got := formatErrorForDisplay(err, false)
	assert.Contains(t, got, "failed to load scene: lab.world")
	assert.Contains(t, got, "resource_paths")

	verbose := formatErrorForDisplay(err, true)
	assert.Contains(t, verbose, "Error chain:")

	plugin := formatErrorForDisplay(&server.StartupError{Kind: server.SubsystemInitFailed, Subsystem: "plugin", Err: errors.New("unknown plugin")}, false)
	assert.Contains(t, plugin, "failed to start plugin")

	assert.Equal(t, "boom", formatErrorForDisplay(errors.New("boom"), false))
}

func TestRenderErrorIncludesGuide(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := &server.LoadError{Kind: server.NotFound, Resource: "lab.world", Err: os.ErrNotExist}
	renderError(&buf, err, false)
	_, styled := classifyStartupError(err, false)
	assert.Contains(t, buf.String(), "lab.world")
	assert.Greater(t, buf.Len(), len(styled))

	buf.Reset()
	renderError(&buf, errors.New("boom"), false)
	assert.Contains(t, buf.String(), "boom")
	_, styled = classifyStartupError(errors.New("boom"), false)
	assert.Equal(t, styled, buf.String())
}
