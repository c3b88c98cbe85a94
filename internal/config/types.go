// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidConfig is wrapped by validation failures that CUE cannot express.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	// Config is the resolved server configuration.
	Config struct {
		MasterURI     string              `mapstructure:"master_uri"`
		ResourcePaths []string            `mapstructure:"resource_paths"`
		Log           LogConfig           `mapstructure:"log"`
		NamespaceWait NamespaceWaitConfig `mapstructure:"namespace_wait"`
		TickInterval  time.Duration       `mapstructure:"tick_interval"`
		Record        RecordConfig        `mapstructure:"record"`
		Plugins       []string            `mapstructure:"plugins"`
		TempDir       string              `mapstructure:"temp_dir"`
	}

	// LogConfig configures the process logger.
	LogConfig struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	}

	// NamespaceWaitConfig bounds the wait for world namespaces after loading.
	NamespaceWaitConfig struct {
		Timeout  time.Duration `mapstructure:"timeout"`
		Attempts int           `mapstructure:"attempts"`
	}

	// RecordConfig holds the defaults for --record.
	RecordConfig struct {
		Path     string `mapstructure:"path"`
		Encoding string `mapstructure:"encoding"`
	}

	// InvalidConfigError names the offending key.
	InvalidConfigError struct {
		Key    string
		Reason string
	}
)

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	recordPath := filepath.Join(os.TempDir(), "simserver", "log")
	if home, err := os.UserHomeDir(); err == nil {
		recordPath = filepath.Join(home, ".simserver", "log")
	}
	return &Config{
		MasterURI: "http://localhost:11345",
		Log:       LogConfig{Level: "info"},
		NamespaceWait: NamespaceWaitConfig{
			Timeout:  time.Second,
			Attempts: 10,
		},
		TickInterval: time.Millisecond,
		Record: RecordConfig{
			Path:     recordPath,
			Encoding: "zlib",
		},
		TempDir: os.TempDir(),
	}
}

// Validate checks the constraints that remain after schema validation.
func (c *Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, &InvalidConfigError{Key: "tick_interval", Reason: "must be positive"})
	}
	if c.NamespaceWait.Timeout <= 0 {
		errs = append(errs, &InvalidConfigError{Key: "namespace_wait.timeout", Reason: "must be positive"})
	}
	if c.NamespaceWait.Attempts < 1 {
		errs = append(errs, &InvalidConfigError{Key: "namespace_wait.attempts", Reason: "must be at least 1"})
	}
	if c.TempDir == "" {
		errs = append(errs, &InvalidConfigError{Key: "temp_dir", Reason: "must not be empty"})
	}
	return errors.Join(errs...)
}
