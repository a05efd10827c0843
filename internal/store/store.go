package store

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the composite interface for all data access.
type Store interface {
	JobStore
	MetricsStore
	Tx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// JobStore manages queued job records. The offline queue is the sole
// writer; status and API consumers only read.
type JobStore interface {
	CreateJob(ctx context.Context, j *QueuedJob) error
	GetJob(ctx context.Context, id string) (*QueuedJob, error)
	ListJobs(ctx context.Context, f JobFilter) ([]QueuedJob, int, error)

	// FindActiveJob returns the queued or processing job for the given
	// fingerprint, or ErrNotFound. Used for enqueue deduplication.
	FindActiveJob(ctx context.Context, fingerprint string) (*QueuedJob, error)

	// NextQueuedJobs returns up to limit queued jobs whose backoff delay
	// has elapsed, ordered by priority descending then creation time
	// ascending.
	NextQueuedJobs(ctx context.Context, now time.Time, limit int) ([]QueuedJob, error)

	// ClaimJob transitions a queued job to processing. Returns
	// ErrConflict if the job is no longer in the queued state.
	ClaimJob(ctx context.Context, id string) error

	CompleteJob(ctx context.Context, id string, result json.RawMessage) error
	RequeueJob(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
	FailJob(ctx context.Context, id string, attempts int, lastError string) error

	// ResetJob returns a failed job to the queued state with zeroed
	// attempts. Operator action.
	ResetJob(ctx context.Context, id string) error

	// ResetStaleProcessing returns any processing jobs to queued. Called
	// once at startup to recover jobs orphaned by a crash.
	ResetStaleProcessing(ctx context.Context) (int, error)

	DeleteJob(ctx context.Context, id string) error
	DeleteJobsByStatus(ctx context.Context, status JobStatus) (int, error)
	CountJobs(ctx context.Context) (QueueCounts, error)
}

// MetricsStore persists periodic metrics snapshots.
type MetricsStore interface {
	InsertMetricsSample(ctx context.Context, s *MetricsSample) error
	LatestMetricsSample(ctx context.Context) (*MetricsSample, error)
	PruneMetricsSamples(ctx context.Context, keep int) (int, error)
}
