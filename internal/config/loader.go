// Package config loads and applies the toolroute.yaml file: remote
// backend settings, queue and cache tuning, and the tool table.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the top-level toolroute.yaml structure.
type FileConfig struct {
	Remote       remoteConfig       `yaml:"remote"`
	Queue        queueConfig        `yaml:"queue"`
	Cache        cacheConfig        `yaml:"cache"`
	Connectivity connectivityConfig `yaml:"connectivity"`
	Tools        []toolConfig       `yaml:"tools"`
}

type remoteConfig struct {
	Endpoint   string `yaml:"endpoint"`
	TimeoutSec int    `yaml:"timeout_sec,omitempty"`
}

type queueConfig struct {
	Workers          int `yaml:"workers,omitempty"`
	MaxAttempts      int `yaml:"max_attempts,omitempty"`
	MaxPending       int `yaml:"max_pending,omitempty"`
	DrainIntervalSec int `yaml:"drain_interval_sec,omitempty"`
	BackoffBaseMS    int `yaml:"backoff_base_ms,omitempty"`
	BackoffCapSec    int `yaml:"backoff_cap_sec,omitempty"`
}

type cacheConfig struct {
	MaxEntries int   `yaml:"max_entries,omitempty"`
	MaxBytes   int64 `yaml:"max_bytes,omitempty"`
}

type connectivityConfig struct {
	ProbeIntervalSec int `yaml:"probe_interval_sec,omitempty"`
}

type toolConfig struct {
	Name           string `yaml:"name"`
	Tier           string `yaml:"tier"`
	LocalTimeoutMS int    `yaml:"local_timeout_ms,omitempty"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec,omitempty"`
	Script         string `yaml:"script,omitempty"`      // inline source
	ScriptFile     string `yaml:"script_file,omitempty"` // path relative to the config file
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RemoteTimeout returns the configured remote call deadline.
func (c *FileConfig) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Remote.TimeoutSec) * time.Second
}

// ProbeInterval returns the connectivity probe cadence.
func (c *FileConfig) ProbeInterval() time.Duration {
	if c.Connectivity.ProbeIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Connectivity.ProbeIntervalSec) * time.Second
}
