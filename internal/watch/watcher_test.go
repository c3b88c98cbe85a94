// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Path: filepath.Join(t.TempDir(), "a.world"), Also: []string{"[unclosed"}})
	require.Error(t, err)

	_, err = New(Config{Path: filepath.Join(t.TempDir(), "missing", "a.world")})
	require.Error(t, err)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	w, err := New(Config{
		Path: filepath.Join(t.TempDir(), "arena.world"),
		Also: []string{"*.yaml"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fsw.Close() })

	tests := []struct {
		name string
		want bool
	}{
		{"arena.world", true},
		{"other.world", false},
		{"models.yaml", true},
		{"arena.world.swp", false},
		{"arena.world~", false},
		{".#arena.world", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.Matches(tt.name), tt.name)
	}
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Path: filepath.Join(t.TempDir(), "a.world")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, w.started.Load, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, w.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestRunDebouncesWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "arena.world")
	require.NoError(t, os.WriteFile(path, []byte("worlds: []\n"), 0o644))

	var (
		mu    sync.Mutex
		calls [][]string
	)
	w, err := New(Config{
		Path:     path,
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, changed)
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.Eventually(t, w.started.Load, time.Second, 5*time.Millisecond)

	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte("worlds: []\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, 3*time.Second, 10*time.Millisecond)

	// no second callback once the window has closed
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	assert.Len(t, calls, 1)
	assert.Equal(t, []string{"arena.world"}, calls[0])
	mu.Unlock()

	cancel()
	require.NoError(t, <-done)
}
