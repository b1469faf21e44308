// Package config provides configuration helpers and file parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file. Every field is optional; nil
// means "not set here".
type FileConfig struct {
	Store   StoreConfig   `toml:"store" yaml:"store" envPrefix:"STORE_"`
	Tracker TrackerConfig `toml:"tracker" yaml:"tracker" envPrefix:"TRACKER_"`
	Log     LogConfig     `toml:"log" yaml:"log" envPrefix:"LOG_"`
}

// StoreConfig maps record storage settings.
type StoreConfig struct {
	Backend      *string `toml:"backend" yaml:"backend" env:"BACKEND"`
	Path         *string `toml:"path" yaml:"path" env:"PATH"`
	Key          *string `toml:"key" yaml:"key" env:"KEY"`
	PollInterval *string `toml:"poll-interval" yaml:"poll-interval" env:"POLL_INTERVAL"`
}

// TrackerConfig maps session tracking settings.
type TrackerConfig struct {
	Feed                 *string `toml:"feed" yaml:"feed" env:"FEED"`
	RestartThreshold     *int    `toml:"restart-threshold" yaml:"restart-threshold" env:"RESTART_THRESHOLD"`
	AttachInterval       *string `toml:"attach-interval" yaml:"attach-interval" env:"ATTACH_INTERVAL"`
	ResultAttachAttempts *int    `toml:"result-attach-attempts" yaml:"result-attach-attempts" env:"RESULT_ATTACH_ATTEMPTS"`
	CustomMode           *string `toml:"custom-mode" yaml:"custom-mode" env:"CUSTOM_MODE"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level" yaml:"level" env:"LEVEL"`
	Format *string `toml:"format" yaml:"format" env:"FORMAT"`
}

// LoadConfig reads a config file from the given path. Missing file is not an
// error. Paths ending in .yaml or .yml are read as YAML, anything else as TOML.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	return cfg, nil
}

// Load reads the config file and applies WEAKWORDS_* environment overrides
// on top of it.
func Load(path string) (FileConfig, error) {
	fileCfg, err := LoadConfig(path)
	if err != nil {
		return FileConfig{}, err
	}
	envCfg, err := LoadEnv()
	if err != nil {
		return FileConfig{}, err
	}
	return fileCfg.Merge(envCfg), nil
}

// Merge returns c with every field set in o replacing c's value.
func (c FileConfig) Merge(o FileConfig) FileConfig {
	mergePtr(&c.Store.Backend, o.Store.Backend)
	mergePtr(&c.Store.Path, o.Store.Path)
	mergePtr(&c.Store.Key, o.Store.Key)
	mergePtr(&c.Store.PollInterval, o.Store.PollInterval)
	mergePtr(&c.Tracker.Feed, o.Tracker.Feed)
	mergePtr(&c.Tracker.RestartThreshold, o.Tracker.RestartThreshold)
	mergePtr(&c.Tracker.AttachInterval, o.Tracker.AttachInterval)
	mergePtr(&c.Tracker.ResultAttachAttempts, o.Tracker.ResultAttachAttempts)
	mergePtr(&c.Tracker.CustomMode, o.Tracker.CustomMode)
	mergePtr(&c.Log.Level, o.Log.Level)
	mergePtr(&c.Log.Format, o.Log.Format)
	return c
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Duration parses an optional duration value, returning def when unset.
func Duration(value *string, def time.Duration) (time.Duration, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", *value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", *value)
	}
	return d, nil
}
