// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantErr   bool
	}{
		{"default is info", Options{}, false, false},
		{"explicit debug", Options{Level: "debug"}, true, false},
		{"verbose overrides level", Options{Level: "error", Verbose: true}, true, false},
		{"unknown level", Options{Level: "chatty"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.opts.Output = &buf
			logger, closer, err := New(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = closer() }()

			logger.Debug("debug line")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")))
		})
	}
}

func TestSubPrefixAndFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "simserver.log")
	logger, closer, err := New(Options{Output: &buf, File: file})
	require.NoError(t, err)

	Sub(logger, "bus").Info("hello", "topic", "/sim/x")
	require.NoError(t, closer())

	assert.Contains(t, buf.String(), "bus")
	assert.Contains(t, buf.String(), "hello")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	Sub(nil, "x").Error("dropped")
	Discard().Error("dropped")
}
