// Package config loads phonebridge configuration.
//
// Configuration comes from one YAML file, named by the PHONEBRIDGE_CONFIG
// environment variable or the --config flag. Command-line flags registered
// with RegisterFlags override file values when set explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/roach88/phonebridge/internal/radio"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "PHONEBRIDGE_CONFIG"

// Config is the phonebridge configuration.
type Config struct {
	// Worker configures the confined radio worker.
	Worker WorkerConfig `yaml:"worker"`

	// Unlock configures SIM unlock exchanges.
	Unlock UnlockConfig `yaml:"unlock"`

	// Diagnostics configures where bridge anomalies are kept.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// Modem configures the simulated downstream.
	Modem ModemConfig `yaml:"modem"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// WorkerConfig configures the confined radio worker.
type WorkerConfig struct {
	// DefaultInstance is what the "default" alias resolves to.
	// Default: phone0
	DefaultInstance string `yaml:"default_instance"`

	// DefaultTimeout bounds calls made by the CLI. Zero waits without a
	// deadline.
	// Default: 2s
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// UnboundedCeiling caps waits that have no deadline. Zero disables it.
	// Default: 0
	UnboundedCeiling time.Duration `yaml:"unbounded_ceiling"`

	// TagLimit caps attribution tags, in runes.
	// Default: 64
	TagLimit int `yaml:"tag_limit"`
}

// UnlockConfig configures SIM unlock exchanges.
type UnlockConfig struct {
	// WatchdogDelay is how long an exchange waits before the watchdog
	// records a diagnostic.
	// Default: 10s
	WatchdogDelay time.Duration `yaml:"watchdog_delay"`
}

// DiagnosticsConfig configures the diagnostics journal.
type DiagnosticsConfig struct {
	// Journal is the SQLite file diagnostics are written to. Empty keeps
	// diagnostics in the log only.
	Journal string `yaml:"journal"`

	// Buffer is the number of diagnostics queued for the journal writer.
	// Default: 256
	Buffer int `yaml:"buffer"`
}

// ModemConfig configures the simulated modem.
type ModemConfig struct {
	// Script is the YAML modem script path.
	Script string `yaml:"script"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			DefaultInstance: string(radio.Phone(0)),
			DefaultTimeout:  2 * time.Second,
			TagLimit:        64,
		},
		Unlock: UnlockConfig{
			WatchdogDelay: 10 * time.Second,
		},
		Diagnostics: DiagnosticsConfig{
			Buffer: 256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the file named by PHONEBRIDGE_CONFIG, or returns defaults when
// it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	inst := radio.Instance(c.Worker.DefaultInstance)
	if inst == "" || inst.IsDefault() {
		errs = append(errs, fmt.Errorf("worker.default_instance must name a concrete instance, got %q", c.Worker.DefaultInstance))
	}
	if c.Worker.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("worker.default_timeout must not be negative"))
	}
	if c.Worker.UnboundedCeiling < 0 {
		errs = append(errs, fmt.Errorf("worker.unbounded_ceiling must not be negative"))
	}
	if c.Worker.TagLimit <= 0 {
		errs = append(errs, fmt.Errorf("worker.tag_limit must be positive"))
	}
	if c.Unlock.WatchdogDelay <= 0 {
		errs = append(errs, fmt.Errorf("unlock.watchdog_delay must be positive"))
	}
	if c.Diagnostics.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("diagnostics.buffer must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be one of: text, json"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Flag names registered by RegisterFlags.
const (
	FlagDefaultInstance  = "default-instance"
	FlagTimeout          = "timeout"
	FlagUnboundedCeiling = "unbounded-ceiling"
	FlagWatchdogDelay    = "watchdog-delay"
	FlagJournal          = "journal"
	FlagScript           = "script"
	FlagLogLevel         = "log-level"
)

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagDefaultInstance, d.Worker.DefaultInstance, "instance the default alias resolves to")
	fs.Duration(FlagTimeout, d.Worker.DefaultTimeout, "bounded wait for each call (0 waits without deadline)")
	fs.Duration(FlagUnboundedCeiling, d.Worker.UnboundedCeiling, "ceiling for waits without deadline (0 disables)")
	fs.Duration(FlagWatchdogDelay, d.Unlock.WatchdogDelay, "SIM unlock watchdog delay")
	fs.String(FlagJournal, d.Diagnostics.Journal, "SQLite diagnostics journal path")
	fs.String(FlagScript, d.Modem.Script, "simulated modem script (YAML)")
	fs.String(FlagLogLevel, d.Log.Level, "log level (debug, info, warn, error)")
}

// ApplyFlags copies explicitly set flags from fs over c. Flags that were
// not registered or not set are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var errs []error

	str := func(name string, dst *string) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetDuration(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str(FlagDefaultInstance, &c.Worker.DefaultInstance)
	dur(FlagTimeout, &c.Worker.DefaultTimeout)
	dur(FlagUnboundedCeiling, &c.Worker.UnboundedCeiling)
	dur(FlagWatchdogDelay, &c.Unlock.WatchdogDelay)
	str(FlagJournal, &c.Diagnostics.Journal)
	str(FlagScript, &c.Modem.Script)
	str(FlagLogLevel, &c.Log.Level)

	return errors.Join(errs...)
}
