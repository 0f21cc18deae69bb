// Package config provides configuration management for the lazyns CLI
// using Viper for loading from files, environment variables and
// command-line flags.
//
// Settings cover the runtime the CLI builds (eager resolution, nil-on-error
// alias targets, the virtual path prefix), the spec file watcher and
// logging. Environment variables use the LAZYNS_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/lazyns/internal/logging"
	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/lazyns"
)

type Config struct {
	Runtime   RuntimeConfig `yaml:"runtime" mapstructure:"runtime"`
	Watch     WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig     `yaml:"log" mapstructure:"log"`
	SpecFiles []string      `yaml:"-" mapstructure:"-"` // CLI arguments, not from config file
}

type RuntimeConfig struct {
	Eager             bool     `yaml:"eager" mapstructure:"eager"`
	EagerTriggers     []string `yaml:"eager_triggers" mapstructure:"eager_triggers"`
	NilOnImportError  []string `yaml:"nil_on_import_error" mapstructure:"nil_on_import_error"`
	VirtualPathPrefix string   `yaml:"virtual_path_prefix" mapstructure:"virtual_path_prefix"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Ignore   []string      `yaml:"ignore" mapstructure:"ignore"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const (
	DefaultDebounce = 250 * time.Millisecond
	maxDebounce     = 10 * time.Second
)

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and applies defaults for
// everything left unset.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, lnerrors.NewConfigError("UNMARSHAL_FAILED", "cannot decode configuration", err)
	}

	// Slices set through env or flags arrive as strings
	if v.IsSet("runtime.eager_triggers") {
		config.Runtime.EagerTriggers = v.GetStringSlice("runtime.eager_triggers")
	}
	if v.IsSet("runtime.nil_on_import_error") {
		config.Runtime.NilOnImportError = v.GetStringSlice("runtime.nil_on_import_error")
	}
	if v.IsSet("watch.ignore") {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}

	// Unmarshal does not see keys known only through AutomaticEnv
	if v.IsSet("runtime.eager") {
		config.Runtime.Eager = v.GetBool("runtime.eager")
	}
	if v.IsSet("runtime.virtual_path_prefix") {
		config.Runtime.VirtualPathPrefix = v.GetString("runtime.virtual_path_prefix")
	}
	if v.IsSet("watch.debounce") {
		config.Watch.Debounce = v.GetDuration("watch.debounce")
	}
	if v.IsSet("log.level") {
		config.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		config.Log.Format = v.GetString("log.format")
	}

	if !v.IsSet("runtime.eager_triggers") {
		config.Runtime.EagerTriggers = []string{"bpython"}
	}
	if !v.IsSet("runtime.nil_on_import_error") {
		config.Runtime.NilOnImportError = []string{"pytest"}
	}
	if config.Runtime.VirtualPathPrefix == "" {
		config.Runtime.VirtualPathPrefix = lazyns.DefaultVirtualPathPrefix
	}
	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"*~", "*.swp", ".#*"}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, lnerrors.NewConfigError("INVALID", "invalid configuration", err)
	}

	return &config, nil
}

// RuntimeOptions returns the lazyns options the configuration asks for.
func (c *Config) RuntimeOptions(logger logging.Logger) []lazyns.Option {
	opts := []lazyns.Option{
		lazyns.WithVirtualPathPrefix(c.Runtime.VirtualPathPrefix),
		lazyns.WithEagerTriggers(c.Runtime.EagerTriggers...),
		lazyns.WithNilOnImportError(c.Runtime.NilOnImportError...),
	}
	if logger != nil {
		opts = append(opts, lazyns.WithLogger(logger))
	}
	return opts
}

// InitOptions returns the per-Init options the configuration asks for.
func (c *Config) InitOptions() []lazyns.InitOption {
	if c.Runtime.Eager {
		return []lazyns.InitOption{lazyns.WithEager()}
	}
	return nil
}

// LoggerConfig builds the logger configuration.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = c.Log.Format
	return lc, nil
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if err := validateRuntimeConfig(&config.Runtime); err != nil {
		return fmt.Errorf("runtime config: %w", err)
	}

	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateRuntimeConfig(config *RuntimeConfig) error {
	if strings.ContainsAny(config.VirtualPathPrefix, " \t\n\r") {
		return fmt.Errorf("virtual_path_prefix contains whitespace: %q", config.VirtualPathPrefix)
	}
	for _, name := range append(append([]string{}, config.EagerTriggers...), config.NilOnImportError...) {
		if err := validateName(name); err != nil {
			return err
		}
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 || config.Debounce > maxDebounce {
		return fmt.Errorf("debounce %s is not in valid range 0-%s", config.Debounce, maxDebounce)
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}
}

// validateName checks a dotted registry name
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" {
			return fmt.Errorf("name %q has an empty segment", name)
		}
		if strings.ContainsAny(seg, " \t\n\r:/") {
			return fmt.Errorf("name %q contains an invalid character", name)
		}
	}
	return nil
}
