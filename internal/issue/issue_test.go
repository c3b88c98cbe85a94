// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	err := NewErrorContext().
		WithOperation("load scene").
		WithResource("lab.world").
		WithSuggestion("check the path").
		WithSuggestions("try worlds/empty.world", "set resource_paths").
		WithIssue(SceneNotFoundId).
		Wrap(cause).
		BuildError()
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load scene: lab.world: no such file", err.Error())

	var ae *ActionableError
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Suggestions, 3)
	assert.Equal(t, SceneNotFoundId, ae.Issue)

	assert.NoError(t, NewErrorContext().WithResource("x").BuildError())
	assert.Nil(t, NewErrorContext().Build())
	assert.Nil(t, WrapWithOperation(nil, "x"))
}

func TestFormat(t *testing.T) {
	t.Parallel()

	inner := errors.New("permission denied")
	ae := &ActionableError{
		Operation:   "start recording",
		Suggestions: []string{"check --record_path"},
		Cause:       wrapf(inner),
	}

	short := ae.Format(false)
	assert.Contains(t, short, "• check --record_path")
	assert.NotContains(t, short, "Error chain")

	long := ae.Format(true)
	assert.Contains(t, long, "Error chain:")
	assert.Contains(t, long, "1. create: permission denied")
	assert.Contains(t, long, "2. permission denied")
}

type wrapped struct{ err error }

func (w wrapped) Error() string { return "create: " + w.err.Error() }
func (w wrapped) Unwrap() error { return w.err }

func wrapf(err error) error { return wrapped{err} }

func TestCatalog(t *testing.T) {
	t.Parallel()

	all := Values()
	require.Len(t, all, int(RecordFailedId))
	for i, entry := range all {
		assert.Equal(t, Id(i+1), entry.Id())
		assert.NotEmpty(t, entry.Title())
		assert.True(t, strings.HasPrefix(entry.Markdown(), "# "+entry.Title()))
	}
	assert.Nil(t, Get(Id(999)))
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Get(EngineRejectedId).Render("notty")
	require.NoError(t, err)
	assert.Contains(t, out, "physics engine")
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	assert.Equal(t, "plain", Describe(plain, false, "notty"))

	err := NewErrorContext().
		WithOperation("start bus endpoint").
		WithIssue(MasterStartFailedId).
		Wrap(plain).
		BuildError()
	out := Describe(err, false, "notty")
	assert.Contains(t, out, "failed to start bus endpoint: plain")
	assert.Contains(t, out, "master endpoint")
}
