// Package queue implements the durable offline queue: deferred jobs are
// persisted, drained in priority order when connectivity allows, and
// retried with exponential backoff until completion or exhaustion.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/invoke"
	"github.com/tidewater/toolroute/internal/metrics"
	"github.com/tidewater/toolroute/internal/store"
)

// ErrQueueFull means the pending-job capacity bound was reached and the
// enqueue was rejected.
var ErrQueueFull = errors.New("offline queue is full")

// Executor runs a drained job. Implemented by the router, which sends
// deferred work over the remote path and caches successes.
type Executor interface {
	ExecuteJob(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error)
}

// Config bounds the queue's concurrency, retries, and capacity.
type Config struct {
	Workers       int           // concurrent drain worker slots
	MaxAttempts   int           // attempts before a job fails permanently
	MaxPending    int           // queued+processing capacity bound
	DrainInterval time.Duration // periodic drain trigger
	BackoffBase   time.Duration // retry delay base
	BackoffCap    time.Duration // retry delay ceiling
	DrainBatch    int           // jobs selected per drain pass
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       2,
		MaxAttempts:   5,
		MaxPending:    1000,
		DrainInterval: 30 * time.Second,
		BackoffBase:   2 * time.Second,
		BackoffCap:    5 * time.Minute,
		DrainBatch:    16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MaxPending <= 0 {
		c.MaxPending = d.MaxPending
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = d.DrainInterval
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = d.BackoffCap
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = d.DrainBatch
	}
	return c
}

// Queue is the durable offline queue. It is the sole mutator of job
// records; the router only enqueues and API consumers only read.
type Queue struct {
	store   store.Store
	exec    Executor
	conn    *connectivity.Monitor
	monitor *metrics.Monitor
	cfg     Config

	sem      *semaphore.Weighted
	draining atomic.Bool
}

// New creates a queue.
func New(st store.Store, exec Executor, conn *connectivity.Monitor, monitor *metrics.Monitor, cfg Config) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		store:   st,
		exec:    exec,
		conn:    conn,
		monitor: monitor,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Enqueue persists a deferred request. Requests with a fingerprint
// already queued or processing return the existing job id instead of
// creating a duplicate.
func (q *Queue) Enqueue(ctx context.Context, req *invoke.Request, priority int) (string, error) {
	fp := req.Fingerprint()

	var jobID string
	var created bool
	err := q.store.Tx(ctx, func(s store.Store) error {
		existing, err := s.FindActiveJob(ctx, fp)
		if err == nil {
			jobID = existing.ID
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("find active job: %w", err)
		}

		counts, err := s.CountJobs(ctx)
		if err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}
		if counts.Pending() >= q.cfg.MaxPending {
			return fmt.Errorf("%w: %d pending jobs", ErrQueueFull, counts.Pending())
		}

		job := &store.QueuedJob{
			Fingerprint: fp,
			Tool:        req.Tool,
			Params:      req.RawParams(),
			Priority:    priority,
			MaxAttempts: q.cfg.MaxAttempts,
		}
		if err := s.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		jobID = job.ID
		created = true
		return nil
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost an insert race to the active-fingerprint unique index;
		// the winner's job stands in for this request.
		existing, ferr := q.store.FindActiveJob(ctx, fp)
		if ferr != nil {
			return "", fmt.Errorf("find active job after conflict: %w", ferr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}

	if created {
		q.updateDepth(ctx)
		slog.Info("job enqueued",
			"job_id", jobID, "tool", req.Tool, "priority", priority)
	}
	return jobID, nil
}

// Run drives the drain loop until ctx is done. Drains fire on a fixed
// interval and immediately when connectivity is restored.
func (q *Queue) Run(ctx context.Context) error {
	if n, err := q.store.ResetStaleProcessing(ctx); err != nil {
		slog.Warn("reset stale processing jobs", "error", err)
	} else if n > 0 {
		slog.Info("recovered orphaned jobs", "count", n)
	}

	events := q.conn.Subscribe()
	defer q.conn.Unsubscribe(events)

	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-events:
			if evt.Online {
				q.Drain(ctx)
			}
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

// Drain processes queued jobs in (priority DESC, created_at ASC) order.
// At most one drain pass runs at a time; concurrent triggers return
// immediately rather than blocking, so Enqueue is never held up by an
// in-progress drain.
func (q *Queue) Drain(ctx context.Context) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	if !q.conn.Online() {
		return
	}

	for {
		jobs, err := q.store.NextQueuedJobs(ctx, time.Now().UTC(), q.cfg.DrainBatch)
		if err != nil {
			slog.Error("select queued jobs", "error", err)
			return
		}
		if len(jobs) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, job := range jobs {
			if err := q.sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(job store.QueuedJob) {
				defer wg.Done()
				defer q.sem.Release(1)
				q.process(ctx, job)
			}(job)
		}
		wg.Wait()

		if ctx.Err() != nil || !q.conn.Online() {
			break
		}
	}

	q.monitor.SetLastSync(time.Now().UTC())
	q.updateDepth(ctx)
}

func (q *Queue) process(ctx context.Context, job store.QueuedJob) {
	if err := q.store.ClaimJob(ctx, job.ID); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			slog.Error("claim job", "job_id", job.ID, "error", err)
		}
		return
	}

	start := time.Now()
	result, err := q.exec.ExecuteJob(ctx, job.Tool, job.Params)
	latency := time.Since(start)

	if err == nil {
		if cerr := q.store.CompleteJob(ctx, job.ID, result); cerr != nil {
			slog.Error("complete job", "job_id", job.ID, "error", cerr)
			return
		}
		q.monitor.Record(invoke.RouteQueue, job.Tool, latency, true)
		slog.Info("job completed",
			"job_id", job.ID, "tool", job.Tool, "attempts", job.Attempts+1)
		return
	}

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		if ferr := q.store.FailJob(ctx, job.ID, attempts, err.Error()); ferr != nil {
			slog.Error("fail job", "job_id", job.ID, "error", ferr)
			return
		}
		q.monitor.Record(invoke.RouteQueue, job.Tool, latency, false)
		slog.Warn("job failed permanently",
			"job_id", job.ID, "tool", job.Tool, "attempts", attempts, "error", err)
		return
	}

	delay := q.backoff(attempts)
	if rerr := q.store.RequeueJob(ctx, job.ID, attempts, time.Now().UTC().Add(delay), err.Error()); rerr != nil {
		slog.Error("requeue job", "job_id", job.ID, "error", rerr)
		return
	}
	slog.Info("job retry scheduled",
		"job_id", job.ID, "tool", job.Tool, "attempts", attempts, "delay", delay)
}

// backoff returns base * 2^attempts, capped.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.BackoffBase
	for i := 0; i < attempts && d < q.cfg.BackoffCap; i++ {
		d *= 2
	}
	if d > q.cfg.BackoffCap {
		d = q.cfg.BackoffCap
	}
	return d
}

func (q *Queue) updateDepth(ctx context.Context) {
	counts, err := q.store.CountJobs(ctx)
	if err != nil {
		return
	}
	q.monitor.SetQueueDepth(int64(counts.Pending()))
}

// Status returns per-state job counts.
func (q *Queue) Status(ctx context.Context) (store.QueueCounts, error) {
	return q.store.CountJobs(ctx)
}

// Result returns the outcome of a deferred job. A completed job yields
// its payload; a permanently failed job yields ErrJobFailed carrying
// the last error; a job still in flight yields its current status with
// no payload and no error.
func (q *Queue) Result(ctx context.Context, id string) (json.RawMessage, store.JobStatus, error) {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	switch job.Status {
	case store.JobCompleted:
		return job.Result, job.Status, nil
	case store.JobFailed:
		return nil, job.Status, fmt.Errorf("%w: %s", invoke.ErrJobFailed, job.LastError)
	default:
		return nil, job.Status, nil
	}
}

// RetryJob returns a permanently failed job to the queued state.
// Operator action.
func (q *Queue) RetryJob(ctx context.Context, id string) error {
	if err := q.store.ResetJob(ctx, id); err != nil {
		return err
	}
	q.updateDepth(ctx)
	return nil
}

// RemoveJob deletes a job regardless of state. Operator action.
func (q *Queue) RemoveJob(ctx context.Context, id string) error {
	if err := q.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	q.updateDepth(ctx)
	return nil
}

// ClearCompleted deletes all completed jobs.
func (q *Queue) ClearCompleted(ctx context.Context) (int, error) {
	return q.store.DeleteJobsByStatus(ctx, store.JobCompleted)
}

// ClearFailed deletes all permanently failed jobs.
func (q *Queue) ClearFailed(ctx context.Context) (int, error) {
	return q.store.DeleteJobsByStatus(ctx, store.JobFailed)
}
