package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidewater/toolroute/internal/store"
)

func (d *DB) InsertMetricsSample(ctx context.Context, s *store.MetricsSample) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO metrics_samples (id, snapshot, created_at)
		VALUES (?, ?, ?)`,
		s.ID, normalizeJSON(s.Snapshot, "{}"), formatTime(s.CreatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) LatestMetricsSample(ctx context.Context) (*store.MetricsSample, error) {
	var s store.MetricsSample
	var snapshot, createdAt string
	err := d.q.QueryRowContext(ctx, `
		SELECT id, snapshot, created_at FROM metrics_samples
		ORDER BY created_at DESC LIMIT 1`,
	).Scan(&s.ID, &snapshot, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Snapshot = json.RawMessage(snapshot)
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// PruneMetricsSamples deletes all but the newest keep samples.
func (d *DB) PruneMetricsSamples(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := d.q.ExecContext(ctx, `
		DELETE FROM metrics_samples WHERE id NOT IN (
			SELECT id FROM metrics_samples
			ORDER BY created_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
