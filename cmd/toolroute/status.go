package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidewater/toolroute/internal/store"
	"github.com/tidewater/toolroute/internal/store/sqlite"
)

func cmdStatus() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	counts, err := db.CountJobs(ctx)
	if err != nil {
		return fmt.Errorf("count jobs: %w", err)
	}

	fmt.Printf("Toolroute Status (db: %s)\n", cfg.DBDSN)
	fmt.Printf("  Queued jobs:     %d\n", counts.Queued)
	fmt.Printf("  Processing jobs: %d\n", counts.Processing)
	fmt.Printf("  Completed jobs:  %d\n", counts.Completed)
	fmt.Printf("  Failed jobs:     %d\n", counts.Failed)

	sample, err := db.LatestMetricsSample(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load metrics sample: %w", err)
	}

	var snap struct {
		CacheHits   int64 `json:"cache_hit_count"`
		CacheMisses int64 `json:"cache_miss_count"`
	}
	if err := json.Unmarshal(sample.Snapshot, &snap); err == nil {
		fmt.Printf("  Cache hits:      %d\n", snap.CacheHits)
		fmt.Printf("  Cache misses:    %d\n", snap.CacheMisses)
	}
	fmt.Printf("  Last sample:     %s\n", sample.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
