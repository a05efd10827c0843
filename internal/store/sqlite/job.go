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

const jobColumns = `id, fingerprint, tool, params, priority, status,
	attempts, max_attempts, last_error, result, next_attempt_at,
	created_at, updated_at, completed_at`

func (d *DB) CreateJob(ctx context.Context, j *store.QueuedJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	if j.NextAttemptAt.IsZero() {
		j.NextAttemptAt = now
	}
	if j.Status == "" {
		j.Status = store.JobQueued
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO queued_jobs
			(id, fingerprint, tool, params, priority, status, attempts,
			 max_attempts, last_error, result, next_attempt_at,
			 created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Fingerprint, j.Tool, normalizeJSON(j.Params, "{}"),
		j.Priority, string(j.Status), j.Attempts, j.MaxAttempts,
		j.LastError, nullableJSON(j.Result), formatTime(j.NextAttemptAt),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt),
		formatTimeOrNil(j.CompletedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) GetJob(ctx context.Context, id string) (*store.QueuedJob, error) {
	row := d.q.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM queued_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return j, err
}

func (d *DB) FindActiveJob(ctx context.Context, fingerprint string) (*store.QueuedJob, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM queued_jobs
		WHERE fingerprint = ? AND status IN ('queued', 'processing')
		ORDER BY created_at ASC LIMIT 1`, fingerprint)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return j, err
}

func (d *DB) ListJobs(ctx context.Context, f store.JobFilter) ([]store.QueuedJob, int, error) {
	where := ""
	var args []any
	var conds []string
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Tool != nil {
		conds = append(conds, "tool = ?")
		args = append(args, *f.Tool)
	}
	for i, c := range conds {
		if i == 0 {
			where = " WHERE " + c
		} else {
			where += " AND " + c
		}
	}

	var total int
	countQ := "SELECT COUNT(*) FROM queued_jobs" + where
	if err := d.q.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	dataQ := `SELECT ` + jobColumns + ` FROM queued_jobs` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	dataArgs := append(args, limit, f.Offset)

	rows, err := d.q.QueryContext(ctx, dataQ, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.QueuedJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *j)
	}
	return out, total, rows.Err()
}

func (d *DB) NextQueuedJobs(ctx context.Context, now time.Time, limit int) ([]store.QueuedJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.q.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM queued_jobs
		WHERE status = 'queued' AND next_attempt_at <= ?
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`, formatTime(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.QueuedJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// ClaimJob transitions queued -> processing. The WHERE clause makes the
// claim conditional so concurrent workers cannot double-process a job.
func (d *DB) ClaimJob(ctx context.Context, id string) error {
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'queued'`,
		formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (d *DB) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	now := formatTime(time.Now())
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'completed', result = ?, last_error = '',
		    updated_at = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		nullableJSON(result), now, now, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) RequeueJob(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'queued', attempts = ?, next_attempt_at = ?,
		    last_error = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		attempts, formatTime(nextAttemptAt), lastError,
		formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) FailJob(ctx context.Context, id string, attempts int, lastError string) error {
	now := formatTime(time.Now())
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'failed', attempts = ?, last_error = ?,
		    updated_at = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		attempts, lastError, now, now, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) ResetJob(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'queued', attempts = 0, last_error = '',
		    next_attempt_at = ?, updated_at = ?, completed_at = NULL
		WHERE id = ? AND status = 'failed'`,
		now, now, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) ResetStaleProcessing(ctx context.Context) (int, error) {
	now := formatTime(time.Now())
	res, err := d.q.ExecContext(ctx, `
		UPDATE queued_jobs
		SET status = 'queued', next_attempt_at = ?, updated_at = ?
		WHERE status = 'processing'`, now, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) DeleteJob(ctx context.Context, id string) error {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM queued_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteJobsByStatus(ctx context.Context, status store.JobStatus) (int, error) {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM queued_jobs WHERE status = ?`, string(status))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) CountJobs(ctx context.Context) (store.QueueCounts, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queued_jobs GROUP BY status`)
	if err != nil {
		return store.QueueCounts{}, err
	}
	defer rows.Close()

	var c store.QueueCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return store.QueueCounts{}, err
		}
		switch store.JobStatus(status) {
		case store.JobQueued:
			c.Queued = n
		case store.JobProcessing:
			c.Processing = n
		case store.JobCompleted:
			c.Completed = n
		case store.JobFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*store.QueuedJob, error) {
	var j store.QueuedJob
	var status, params string
	var result, completedAt sql.NullString
	var nextAttemptAt, createdAt, updatedAt string

	err := row.Scan(
		&j.ID, &j.Fingerprint, &j.Tool, &params, &j.Priority, &status,
		&j.Attempts, &j.MaxAttempts, &j.LastError, &result,
		&nextAttemptAt, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = store.JobStatus(status)
	j.Params = json.RawMessage(params)
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.NextAttemptAt = parseTime(nextAttemptAt)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		j.CompletedAt = &t
	}
	return &j, nil
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

func formatTimeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
