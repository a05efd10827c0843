package config

import (
	"fmt"
	"strings"

	"github.com/tidewater/toolroute/internal/classify"
)

// ValidationError holds all validation failures for a config file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// validate checks the parsed config for correctness.
func validate(cfg *FileConfig) error {
	var errs []string

	names := make(map[string]bool, len(cfg.Tools))
	for i, tc := range cfg.Tools {
		if tc.Name == "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: name is required", i))
		}
		if names[tc.Name] {
			errs = append(errs, fmt.Sprintf("tools[%d]: duplicate name %q", i, tc.Name))
		}
		names[tc.Name] = true
		if !classify.Tier(tc.Tier).Valid() {
			errs = append(errs, fmt.Sprintf("tools[%d]: invalid tier %q (must be simple, medium, or complex)", i, tc.Tier))
		}
		if tc.Script != "" && tc.ScriptFile != "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: script and script_file are mutually exclusive", i))
		}
		if tc.LocalTimeoutMS < 0 {
			errs = append(errs, fmt.Sprintf("tools[%d]: local_timeout_ms must not be negative", i))
		}
		if tc.CacheTTLSec < 0 {
			errs = append(errs, fmt.Sprintf("tools[%d]: cache_ttl_sec must not be negative", i))
		}
	}

	if cfg.Queue.MaxPending < 0 {
		errs = append(errs, "queue: max_pending must not be negative")
	}
	if cfg.Queue.Workers < 0 {
		errs = append(errs, "queue: workers must not be negative")
	}
	if cfg.Cache.MaxBytes < 0 {
		errs = append(errs, "cache: max_bytes must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
