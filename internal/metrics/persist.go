package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tidewater/toolroute/internal/store"
)

// keepSamples bounds the number of persisted snapshots.
const keepSamples = 100

// RunPersist writes a snapshot to the store at the given interval until
// ctx is done. Persistence is best-effort: failures are logged and never
// block or fail a caller's execution path.
func (m *Monitor) RunPersist(ctx context.Context, st store.MetricsStore, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.persistOnce(context.WithoutCancel(ctx), st) // final sample on shutdown
			return ctx.Err()
		case <-ticker.C:
			m.persistOnce(ctx, st)
		}
	}
}

func (m *Monitor) persistOnce(ctx context.Context, st store.MetricsStore) {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		slog.Warn("marshal metrics snapshot", "error", err)
		return
	}
	if err := st.InsertMetricsSample(ctx, &store.MetricsSample{Snapshot: data}); err != nil {
		slog.Warn("persist metrics snapshot", "error", err)
		return
	}
	if _, err := st.PruneMetricsSamples(ctx, keepSamples); err != nil {
		slog.Warn("prune metrics snapshots", "error", err)
	}
}
