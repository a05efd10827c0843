package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tidewater/toolroute/internal/secrets"
	"github.com/tidewater/toolroute/internal/store/sqlite"
)

func cmdInit() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Create database
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	_ = db.Close()
	fmt.Printf("Database created: %s\n", cfg.DBDSN)

	// Create age identity if not exists
	if _, err := os.Stat(cfg.AgeKeyPath); os.IsNotExist(err) {
		enc, err := secrets.GenerateIdentity(cfg.AgeKeyPath)
		if err != nil {
			return fmt.Errorf("generate identity: %w", err)
		}
		fmt.Printf("Age identity created: %s (public key %s)\n", cfg.AgeKeyPath, enc.PublicKey())
	} else {
		fmt.Printf("Age identity already exists: %s\n", cfg.AgeKeyPath)
	}

	// Create default config if not exists
	if _, err := os.Stat(cfg.ConfigFile); os.IsNotExist(err) {
		defaultCfg := `# Toolroute Configuration
# Builtin tools (word_count, calculate_reading_time, keyword_density)
# are always available. Declare additional tools below.

remote:
  endpoint: ""
  timeout_sec: 60

queue:
  workers: 2
  max_attempts: 5
  max_pending: 1000

cache:
  max_entries: 1024
  max_bytes: 33554432

connectivity:
  probe_interval_sec: 30

tools: []
`
		if err := os.WriteFile(cfg.ConfigFile, []byte(defaultCfg), 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Config file created: %s\n", cfg.ConfigFile)
	} else {
		fmt.Printf("Config file already exists: %s\n", cfg.ConfigFile)
	}

	return nil
}
