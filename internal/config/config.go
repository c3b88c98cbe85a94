// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/simforge/simserver/internal/issue"
	"github.com/simforge/simserver/pkg/cueutil"
)

const (
	// AppName is the application name used for the configuration directory.
	AppName = "simserver"
	// FileName is the configuration file name.
	FileName = "config.cue"

	// ResourcePathEnv holds extra scene search directories, separated by the
	// platform list separator.
	ResourcePathEnv = "SIMSERVER_RESOURCE_PATH"

	envPrefix = "SIMSERVER"
)

//go:embed config_schema.cue
var configSchema string

// LoadOptions selects where configuration comes from.
type LoadOptions struct {
	// FilePath forces a specific file.
	FilePath string
	// DirPath overrides the user configuration directory.
	DirPath string
}

// Dir returns the user configuration directory for the server.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load resolves the configuration and returns it with the path of the file it
// came from ("" when only defaults and environment were used).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config cancelled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	if err := v.BindEnv("master_uri"); err != nil {
		return nil, "", fmt.Errorf("bind environment: %w", err)
	}

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the configuration schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode configuration: %w", err)
	}
	if extra := os.Getenv(ResourcePathEnv); extra != "" {
		cfg.ResourcePaths = append(cfg.ResourcePaths, filepath.SplitList(extra)...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("master_uri", d.MasterURI)
	v.SetDefault("resource_paths", d.ResourcePaths)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("namespace_wait.timeout", d.NamespaceWait.Timeout)
	v.SetDefault("namespace_wait.attempts", d.NamespaceWait.Attempts)
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("record.path", d.Record.Path)
	v.SetDefault("record.encoding", d.Record.Encoding)
	v.SetDefault("plugins", d.Plugins)
	v.SetDefault("temp_dir", d.TempDir)
}

// resolvePath picks the explicit file, then the user directory, then the
// current directory. A missing explicit file is an error; missing implicit
// files are not.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.FilePath != "" {
		if !fileExists(opts.FilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.FilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'simserver config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.FilePath)).
				BuildError()
		}
		return opts.FilePath, nil
	}

	dir := opts.DirPath
	if dir == "" {
		d, err := Dir()
		if err == nil {
			dir = d
		}
	}
	if dir != "" {
		if p := filepath.Join(dir, FileName); fileExists(p) {
			return p, nil
		}
	}
	if fileExists(FileName) {
		return FileName, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// It decodes into a map rather than a struct so Viper keeps its defaults for
// everything the file leaves out.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		return fmt.Errorf("internal error: compile config schema: %w", schema.Err())
	}

	user := ctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return cueutil.FormatError(user.Err(), path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

// CUE renders cfg as a config file.
func CUE(cfg *Config) ([]byte, error) {
	out := map[string]any{
		"master_uri": cfg.MasterURI,
		"log": map[string]any{
			"level": cfg.Log.Level,
		},
		"namespace_wait": map[string]any{
			"timeout":  cfg.NamespaceWait.Timeout.String(),
			"attempts": cfg.NamespaceWait.Attempts,
		},
		"tick_interval": cfg.TickInterval.String(),
		"record": map[string]any{
			"path":     cfg.Record.Path,
			"encoding": cfg.Record.Encoding,
		},
		"temp_dir": cfg.TempDir,
	}
	if cfg.Log.File != "" {
		out["log"].(map[string]any)["file"] = cfg.Log.File
	}
	if len(cfg.ResourcePaths) > 0 {
		out["resource_paths"] = cfg.ResourcePaths
	}
	if len(cfg.Plugins) > 0 {
		out["plugins"] = cfg.Plugins
	}
	return cueutil.Marshal(out)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
