package store

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// QueuedJob represents a deferred tool invocation awaiting drain.
type QueuedJob struct {
	ID            string          `json:"id"`
	Fingerprint   string          `json:"fingerprint"`
	Tool          string          `json:"tool"`
	Params        json.RawMessage `json:"params,omitempty"`
	Priority      int             `json:"priority"`
	Status        JobStatus       `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	LastError     string          `json:"last_error,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// JobFilter specifies query parameters for listing jobs.
type JobFilter struct {
	Status *JobStatus `json:"status,omitempty"`
	Tool   *string    `json:"tool,omitempty"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// QueueCounts holds the number of jobs per status.
type QueueCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Pending returns the number of jobs not yet in a terminal state.
func (c QueueCounts) Pending() int {
	return c.Queued + c.Processing
}

// MetricsSample is a persisted point-in-time metrics snapshot.
type MetricsSample struct {
	ID        string          `json:"id"`
	Snapshot  json.RawMessage `json:"snapshot"`
	CreatedAt time.Time       `json:"created_at"`
}
