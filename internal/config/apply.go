package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/executor"
	"github.com/tidewater/toolroute/internal/queue"
)

// Apply registers the configured tools into the classification
// registry and compiles their scripts into the local executor.
// baseDir resolves relative script_file paths, normally the directory
// of the config file itself.
func Apply(cfg *FileConfig, reg *classify.Registry, local *executor.Local, baseDir string) error {
	for _, tc := range cfg.Tools {
		d := classify.Descriptor{
			Name:         tc.Name,
			Tier:         classify.Tier(tc.Tier),
			LocalTimeout: time.Duration(tc.LocalTimeoutMS) * time.Millisecond,
			CacheTTL:     time.Duration(tc.CacheTTLSec) * time.Second,
		}
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register tool %s: %w", tc.Name, err)
		}

		src := tc.Script
		if tc.ScriptFile != "" {
			path := tc.ScriptFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read script for tool %s: %w", tc.Name, err)
			}
			src = string(data)
		}
		if src != "" {
			if err := local.RegisterScript(tc.Name, src); err != nil {
				return fmt.Errorf("compile script for tool %s: %w", tc.Name, err)
			}
		}
	}
	return nil
}

// QueueConfig converts the YAML queue section into queue settings,
// leaving zero values for the queue defaults to fill.
func (c *FileConfig) QueueConfig() queue.Config {
	return queue.Config{
		Workers:       c.Queue.Workers,
		MaxAttempts:   c.Queue.MaxAttempts,
		MaxPending:    c.Queue.MaxPending,
		DrainInterval: time.Duration(c.Queue.DrainIntervalSec) * time.Second,
		BackoffBase:   time.Duration(c.Queue.BackoffBaseMS) * time.Millisecond,
		BackoffCap:    time.Duration(c.Queue.BackoffCapSec) * time.Second,
	}
}
