// Package config loads the demo host's configuration file: which
// library to manage, how often to poll it, and the optional watcher and
// symbol-file-unlocker settings layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Plugin   PluginConfig `yaml:"plugin"`
	Watch    WatchConfig  `yaml:"watch"`
}

// PluginConfig names the managed library and its poll interval.
type PluginConfig struct {
	Path         string   `yaml:"path"`
	SymbolFile   string   `yaml:"symbol_file"`
	PollInterval Duration `yaml:"poll_interval"`
}

// WatchConfig is the auxiliary source-file watcher's settings. It is
// entirely optional: a Config with an empty Watch.Paths simply never
// starts a watcher.
type WatchConfig struct {
	Paths    PathList     `yaml:"paths"`
	Command  []string     `yaml:"command"`
	Interval Duration     `yaml:"interval"`
	Unlock   UnlockConfig `yaml:"unlock"`
}

// UnlockConfig mirrors the original implementation's compile-time
// symbol-file-unlocker selectors (CSFX_PDB_UNLOCK / CSFX_PDB_DELETE /
// CSFX_SINGLE_THREAD) as plain config booleans.
type UnlockConfig struct {
	Enabled      bool `yaml:"enabled"`
	Delete       bool `yaml:"delete"`
	SingleThread bool `yaml:"single_thread"`
}

// PathList unmarshals either a single scalar path or a YAML sequence of
// paths into a []string.
type PathList []string

func (p *PathList) UnmarshalYAML(node *yaml.Node) error {
	var single string
	if err := node.Decode(&single); err == nil {
		*p = []string{single}
		return nil
	}

	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

// Duration unmarshals a YAML string like "500ms" or "2s" into a
// time.Duration; yaml.v3 has no built-in support for time.Duration's
// underlying int64 representation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse file: %w", err)
	}
	if cfg.Plugin.Path == "" {
		return nil, fmt.Errorf("config: plugin.path is required")
	}
	if cfg.Plugin.PollInterval == 0 {
		cfg.Plugin.PollInterval = Duration(time.Second)
	}
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = Duration(time.Second)
	}
	return &cfg, nil
}
