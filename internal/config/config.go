// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package config loads retrobridge settings from defaults, an optional YAML
// file and command line flags, in that order of precedence.
package config

import (
	"net"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/retrobridge/retrobridge/internal/environ"
	"github.com/retrobridge/retrobridge/internal/logging"
	"github.com/retrobridge/retrobridge/internal/xdg"
)

// Error codes.
const (
	CodeInvalid    = "INVALID_CONFIG"
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
)

// Config holds every setting the CLI understands.
type Config struct {
	Log         Log         `koanf:"log"`
	Dirs        Dirs        `koanf:"dirs"`
	Catalog     string      `koanf:"catalog"`
	Metrics     Metrics     `koanf:"metrics"`
	Environment Environment `koanf:"environment"`
	Run         Run         `koanf:"run"`
	Input       Input       `koanf:"input"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Dirs are the directories handed to cores and used for downloads and
// save states.
type Dirs struct {
	System string `koanf:"system"`
	Save   string `koanf:"save"`
	Cores  string `koanf:"cores"`
	States string `koanf:"states"`
}

// Metrics configures the metrics and health endpoint. An empty Addr
// disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Environment configures answers to core environment commands.
type Environment struct {
	Allow     []string          `koanf:"allow"`
	Variables map[string]string `koanf:"variables"`
}

// Run controls the frame loop. Frames 0 runs until interrupted and FPS 0
// paces at the core's own rate.
type Run struct {
	Frames uint64  `koanf:"frames"`
	FPS    float64 `koanf:"fps"`
}

// Input selects the input source. An empty Script uses the built-in pad.
type Input struct {
	Script  string `koanf:"script"`
	Buttons string `koanf:"buttons"`
}

// Default values.
const (
	DefaultLogFormat = "text"
	DefaultLogLevel  = "info"
)

// Defaults returns the built-in configuration. Directories come from the
// XDG base directories and stay empty when HOME is not set.
func Defaults() Config {
	dir := func(fn func() (string, error)) string {
		d, err := fn()
		if err != nil {
			return ""
		}
		return d
	}
	return Config{
		Log: Log{Format: DefaultLogFormat, Level: DefaultLogLevel},
		Dirs: Dirs{
			System: dir(xdg.SystemDir),
			Save:   dir(xdg.SaveDir),
			Cores:  dir(xdg.CoresDir),
			States: dir(xdg.StatesDir),
		},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"system-dir":   "dirs.system",
	"save-dir":     "dirs.save",
	"cores-dir":    "dirs.cores",
	"states-dir":   "dirs.states",
	"catalog":      "catalog",
	"metrics-addr": "metrics.addr",
	"allow-env":    "environment.allow",
	"core-option":  "environment.variables",
	"frames":       "run.frames",
	"fps":          "run.fps",
	"script":       "input.script",
	"buttons":      "input.buttons",
}

// RegisterFlags adds the flags Load understands to fs. Commands register
// only the flags they need; Load ignores the rest.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("system-dir", d.Dirs.System, "directory for BIOS and other system files")
	fs.String("save-dir", d.Dirs.Save, "directory for core battery saves")
	fs.String("cores-dir", d.Dirs.Cores, "directory for downloaded cores")
	fs.String("states-dir", d.Dirs.States, "directory for save state slots")
	fs.String("catalog", "", "core catalog YAML file (default: built-in catalog)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.StringSlice("allow-env", nil, "environment command patterns the host answers (empty = all)")
	fs.StringToString("core-option", nil, "core option overrides as key=value")
	fs.Uint64("frames", 0, "frames to run (0 = until interrupted)")
	fs.Float64("fps", 0, "frame rate (0 = core rate)")
	fs.String("script", "", "Lua input script")
	fs.String("buttons", "", "buttons held on port 0, comma separated")
}

// Load builds the configuration from defaults, the YAML file at path and
// flags. An empty path uses the XDG config file when it exists. A nil
// flag set skips flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := setDefaults(k); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.In("config").Code(CodeLoadFailed).With("path", path).Wrapf(err, "load config file")
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if f.Value.Type() == "stringToString" {
				m, err := flags.GetStringToString(f.Name)
				if err != nil || len(m) == 0 {
					return "", nil
				}
				return key, m
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code(CodeInvalid).Wrapf(err, "decode config")
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) error {
	d := Defaults()
	for key, val := range map[string]any{
		"log.format":  d.Log.Format,
		"log.level":   d.Log.Level,
		"dirs.system": d.Dirs.System,
		"dirs.save":   d.Dirs.Save,
		"dirs.cores":  d.Dirs.Cores,
		"dirs.states": d.Dirs.States,
	} {
		if err := k.Set(key, val); err != nil {
			return oops.In("config").Code(CodeLoadFailed).With("key", key).Wrap(err)
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.In("config").Code(CodeInvalid)
	if !logging.ValidFormat(c.Log.Format) {
		return errb.With("log.format", c.Log.Format).Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errb.With("log.level", c.Log.Level).Wrap(err)
	}
	if c.Run.FPS < 0 {
		return errb.With("run.fps", c.Run.FPS).Errorf("fps must not be negative")
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return errb.With("metrics.addr", c.Metrics.Addr).Wrapf(err, "metrics address")
		}
	}
	if _, err := environ.NewPolicy(c.Environment.Allow); err != nil {
		return errb.With("environment.allow", c.Environment.Allow).Wrap(err)
	}
	return nil
}

// EnsureDirs creates every configured directory.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.Dirs.System, c.Dirs.Save, c.Dirs.Cores, c.Dirs.States} {
		if d == "" {
			continue
		}
		if err := xdg.EnsureDir(d); err != nil {
			return err
		}
	}
	return nil
}

// EnvironmentConfig returns the environment handler settings.
func (c *Config) EnvironmentConfig() environ.Config {
	return environ.Config{
		SystemDir: c.Dirs.System,
		SaveDir:   c.Dirs.Save,
		Allow:     c.Environment.Allow,
		Variables: c.Environment.Variables,
	}
}
