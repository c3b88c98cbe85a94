// SPDX-License-Identifier: MPL-2.0

// Package logging builds the process logger. Every subsystem derives its own
// prefixed logger from the root with Sub.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 7
)

type (
	// Options configures New.
	Options struct {
		// Level is a charmbracelet/log level name ("debug", "info", ...).
		Level string
		// Verbose forces debug level regardless of Level.
		Verbose bool
		// File, when set, receives a copy of every line through a rotating writer.
		File string
		// MaxSizeMB is the rotation threshold. Zero means 10MB.
		MaxSizeMB int
		// MaxBackups is the number of rotated files kept. Zero means 3.
		MaxBackups int
		// Output replaces stderr. Tests use it to capture lines.
		Output io.Writer
	}

	// Closer releases the rotating file, if any.
	Closer func() error
)

// New returns the root logger for the process.
func New(opts Options) (*log.Logger, Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}

	closer := Closer(func() error { return nil })
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     defaultMaxAgeDays,
		}
		out = io.MultiWriter(out, rotating)
		closer = rotating.Close
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	return logger, closer, nil
}

// Sub derives a logger for one subsystem. A nil parent yields a discarding logger.
func Sub(parent *log.Logger, prefix string) *log.Logger {
	if parent == nil {
		return Discard()
	}
	return parent.WithPrefix(prefix)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
