// SPDX-License-Identifier: MPL-2.0

// Package spawn starts independent server processes. Commands are always
// built from an explicit argument vector and environment map; nothing is
// passed through a shell.
package spawn

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/simforge/simserver/internal/logging"
)

type (
	// Spec describes a process to start.
	Spec struct {
		// Path is the executable. Empty means the running binary.
		Path string
		Args []string
		// Env entries override variables of the same name inherited from this process.
		Env    map[string]string
		Dir    string
		Stdout io.Writer
		Stderr io.Writer
	}

	// Process identifies a started process.
	Process struct {
		PID int
	}

	// Spawner starts a process and returns as soon as it is running. The caller
	// does not supervise the child.
	Spawner interface {
		Spawn(ctx context.Context, spec Spec) (Process, error)
	}

	// ExecSpawner starts real OS processes.
	ExecSpawner struct {
		logger *log.Logger
	}
)

// NewExecSpawner creates a spawner logging through logger.
func NewExecSpawner(logger *log.Logger) *ExecSpawner {
	return &ExecSpawner{logger: logging.Sub(logger, "spawn")}
}

// Spawn starts spec. A failure to start is returned; the child's later exit
// status is reaped and logged but never reported.
func (s *ExecSpawner) Spawn(ctx context.Context, spec Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return Process{}, fmt.Errorf("spawn cancelled: %w", err)
	}

	path := spec.Path
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return Process{}, fmt.Errorf("locate server executable: %w", err)
		}
		path = self
	}

	// not CommandContext: the child must outlive the request that created it
	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return Process{}, fmt.Errorf("start %s: %w", path, err)
	}

	pid := cmd.Process.Pid
	s.logger.Info("process started", "pid", pid, "cmd", CommandLine(path, spec.Args))
	go func() {
		err := cmd.Wait()
		s.logger.Debug("process exited", "pid", pid, "err", err)
	}()
	return Process{PID: pid}, nil
}

// MergeEnv returns base with every variable named in overrides replaced.
// Overrides are appended in sorted key order.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		name, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, overridden := overrides[name]; overridden {
				continue
			}
		}
		out = append(out, kv)
	}
	return append(out, EnvToSlice(overrides)...)
}

// EnvToSlice converts an environment map to KEY=value entries sorted by key.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// CommandLine renders path and args as a shell-quoted line for display.
// The result is never executed.
func CommandLine(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{path}, args...) {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

// ExportLine renders a shell export statement for name=value, for users who
// want to point a tool at a new process.
func ExportLine(name, value string) string {
	q, err := syntax.Quote(value, syntax.LangBash)
	if err != nil {
		q = fmt.Sprintf("%q", value)
	}
	return "export " + name + "=" + q
}
