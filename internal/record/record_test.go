// SPDX-License-Identifier: MPL-2.0

package record

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/pkg/scene"
)

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Snapshot() *scene.Document {
	n := s.calls.Add(1)
	return &scene.Document{Worlds: []scene.World{{
		Name:   "rec",
		Models: []scene.Model{{Name: "box", Pose: scene.Vector3{X: float64(n)}}},
	}}}
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingZlib, false},
		{"zlib", EncodingZlib, false},
		{"zstd", EncodingZstd, false},
		{"txt", EncodingTxt, false},
		{"bz2", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidEncoding)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRecordThenPlay(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{"zlib", "zstd", "txt"} {
		t.Run(enc, func(t *testing.T) {
			t.Parallel()

			src := &countingSource{}
			r := NewRecorder(src, WithInterval(5*time.Millisecond), WithSeed(42), WithServerVersion("1.2.3"))

			path, err := r.Start(enc, t.TempDir())
			require.NoError(t, err)
			assert.True(t, r.IsRunning())
			assert.Equal(t, LogFileName, filepath.Base(path))

			_, err = r.Start(enc, t.TempDir())
			assert.ErrorIs(t, err, ErrRecording)

			require.Eventually(t, func() bool { return r.Entries() >= 3 }, 2*time.Second, time.Millisecond)
			require.NoError(t, r.Stop())
			require.NoError(t, r.Stop())
			assert.False(t, r.IsRunning())

			p, err := Open(path)
			require.NoError(t, err)
			assert.Equal(t, LogVersion, p.LogVersion())
			assert.Equal(t, "1.2.3", p.ServerVersion())
			assert.Equal(t, uint64(42), p.RandSeed())
			assert.Equal(t, r.Entries(), p.Len())
			assert.False(t, p.End().Before(p.Start()))

			first, err := p.Step()
			require.NoError(t, err)
			doc, err := scene.ParseString(first)
			require.NoError(t, err)
			require.Len(t, doc.Worlds, 1)
			assert.Equal(t, "rec", doc.Worlds[0].Name)
			assert.InDelta(t, 1.0, doc.Worlds[0].Models[0].Pose.X, 1e-9)

			for range p.Len() - 1 {
				_, err = p.Step()
				require.NoError(t, err)
			}
			_, err = p.Step()
			assert.ErrorIs(t, err, io.EOF)

			p.Rewind()
			again, err := p.Step()
			require.NoError(t, err)
			assert.Equal(t, first, again)
		})
	}
}

func TestConcurrentStop(t *testing.T) {
	t.Parallel()

	r := NewRecorder(&countingSource{}, WithInterval(time.Millisecond))
	path, err := r.Start("txt", t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Stop()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, r.IsRunning())

	p, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, r.Entries(), p.Len())
}

func TestStartRejectsBadEncoding(t *testing.T) {
	t.Parallel()

	r := NewRecorder(&countingSource{})
	_, err := r.Start("rar", t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.False(t, r.IsRunning())
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.log"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.log")
	require.NoError(t, os.WriteFile(bad, []byte("not json\n"), 0o644))
	_, err = Open(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.log")
	require.NoError(t, os.WriteFile(empty, []byte(`{"log_version":"1.0","encoding":"txt"}`+"\n"), 0o644))
	_, err = Open(empty)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no entries"))
}
