// SPDX-License-Identifier: MPL-2.0

package spawn

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/syntax"
)

func TestMergeEnv(t *testing.T) {
	t.Parallel()

	base := []string{"PATH=/bin", "SIMSERVER_MASTER_URI=http://localhost:11345", "MALFORMED", "HOME=/root"}
	got := MergeEnv(base, map[string]string{
		"SIMSERVER_MASTER_URI": "http://10.0.0.5:11400",
		"A":                    "1",
	})
	assert.Equal(t, []string{
		"PATH=/bin",
		"MALFORMED",
		"HOME=/root",
		"A=1",
		"SIMSERVER_MASTER_URI=http://10.0.0.5:11400",
	}, got)
}

func TestEnvToSliceSorted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, EnvToSlice(map[string]string{"C": "3", "A": "1", "B": "2"}))
	assert.Empty(t, EnvToSlice(nil))
}

func TestCommandLineQuotes(t *testing.T) {
	t.Parallel()

	got := CommandLine("/usr/bin/simserver", []string{"/tmp/clone.11400.world", "it's; rm -rf /"})

	f, err := syntax.NewParser().Parse(strings.NewReader(got), "")
	require.NoError(t, err)
	require.Len(t, f.Stmts, 1, "the quoted line must stay a single command")
	call, ok := f.Stmts[0].Cmd.(*syntax.CallExpr)
	require.True(t, ok)
	assert.Len(t, call.Args, 3)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecSpawnerPassesArgsAndEnv(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	var out lockedBuffer
	s := NewExecSpawner(nil)
	proc, err := s.Spawn(context.Background(), Spec{
		Path:   sh,
		Args:   []string{"-c", `printf '%s|%s' "$1" "$SIMSERVER_MASTER_URI"`, "sh", "a b;c"},
		Env:    map[string]string{"SIMSERVER_MASTER_URI": "http://h:1"},
		Stdout: &out,
	})
	require.NoError(t, err)
	assert.Positive(t, proc.PID)

	require.Eventually(t, func() bool { return out.String() == "a b;c|http://h:1" }, 5*time.Second, 10*time.Millisecond)
}

func TestExecSpawnerStartFailure(t *testing.T) {
	t.Parallel()

	s := NewExecSpawner(nil)
	_, err := s.Spawn(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Spawn(ctx, Spec{Path: "/bin/true"})
	assert.ErrorIs(t, err, context.Canceled)
}
