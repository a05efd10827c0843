package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/invoke"
	"github.com/tidewater/toolroute/internal/metrics"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/store"
	"github.com/tidewater/toolroute/internal/store/sqlite"
)

// fakeExec records the order of executed tools and returns scripted
// results.
type fakeExec struct {
	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (f *fakeExec) ExecuteJob(_ context.Context, tool string, _ json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	f.order = append(f.order, tool)
	err := f.fail[tool]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`"ok"`), nil
}

func (f *fakeExec) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func newTestQueue(t *testing.T, exec queue.Executor, cfg queue.Config) (*queue.Queue, *sqlite.DB, *connectivity.Monitor) {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/queue.db")
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conn := connectivity.NewMonitor(nil, time.Hour)
	q := queue.New(db, exec, conn, metrics.NewMonitor(), cfg)
	return q, db, conn
}

func mustRequest(t *testing.T, tool string, params map[string]any) *invoke.Request {
	t.Helper()
	req, err := invoke.NewRequest(tool, params)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestEnqueueDedup(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeExec{}, queue.Config{})
	ctx := context.Background()

	req := mustRequest(t, "build_graph", map[string]any{"depth": 3})
	id1, err := q.Enqueue(ctx, req, 10)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Identical fingerprint while queued: same id.
	same := mustRequest(t, "build_graph", map[string]any{"depth": 3})
	id2, err := q.Enqueue(ctx, same, 10)
	if err != nil {
		t.Fatalf("enqueue dup: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("dedup failed: %s vs %s", id1, id2)
	}

	// Different params: new job.
	other := mustRequest(t, "build_graph", map[string]any{"depth": 4})
	id3, err := q.Enqueue(ctx, other, 10)
	if err != nil {
		t.Fatalf("enqueue other: %v", err)
	}
	if id3 == id1 {
		t.Fatal("distinct requests shared a job id")
	}
}

func TestEnqueueDedupConcurrent(t *testing.T) {
	q, db, _ := newTestQueue(t, &fakeExec{}, queue.Config{})
	ctx := context.Background()

	for round := 0; round < 4; round++ {
		const callers = 8
		ids := make([]string, callers)
		errs := make([]error, callers)

		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := mustRequest(t, "build_graph", map[string]any{"round": round})
				ids[i], errs[i] = q.Enqueue(ctx, req, 10)
			}(i)
		}
		wg.Wait()

		for i := 0; i < callers; i++ {
			if errs[i] != nil {
				t.Fatalf("round %d caller %d: %v", round, i, errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("round %d: caller %d got job %s, caller 0 got %s",
					round, i, ids[i], ids[0])
			}
		}

		counts, err := db.CountJobs(ctx)
		if err != nil {
			t.Fatalf("round %d count: %v", round, err)
		}
		if counts.Queued != round+1 {
			t.Fatalf("round %d: queued = %d, want %d", round, counts.Queued, round+1)
		}
	}
}

func TestEnqueueCapacity(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeExec{}, queue.Config{MaxPending: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req := mustRequest(t, "t", map[string]any{"i": i})
		if _, err := q.Enqueue(ctx, req, 1); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	req := mustRequest(t, "t", map[string]any{"i": 99})
	if _, err := q.Enqueue(ctx, req, 1); !errors.Is(err, queue.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestDrainPriorityOrder(t *testing.T) {
	exec := &fakeExec{}
	q, _, conn := newTestQueue(t, exec, queue.Config{Workers: 1})
	ctx := context.Background()

	// Priorities 1, 10, 5 enqueued in that order.
	for _, tc := range []struct {
		tool string
		prio int
	}{
		{"low", 1}, {"high", 10}, {"mid", 5},
	} {
		req := mustRequest(t, tc.tool, nil)
		if _, err := q.Enqueue(ctx, req, tc.prio); err != nil {
			t.Fatalf("enqueue %s: %v", tc.tool, err)
		}
	}

	conn.SetOnline(true)
	q.Drain(ctx)

	got := exec.executed()
	want := []string{"high", "mid", "low"}
	if len(got) != len(want) {
		t.Fatalf("executed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("executed = %v, want %v", got, want)
		}
	}

	counts, err := q.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if counts.Completed != 3 || counts.Queued != 0 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestDrainOfflineNoop(t *testing.T) {
	exec := &fakeExec{}
	q, _, _ := newTestQueue(t, exec, queue.Config{})
	ctx := context.Background()

	req := mustRequest(t, "t", nil)
	if _, err := q.Enqueue(ctx, req, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	q.Drain(ctx) // monitor still offline
	if len(exec.executed()) != 0 {
		t.Fatal("drain executed jobs while offline")
	}
}

func TestRetryBound(t *testing.T) {
	exec := &fakeExec{fail: map[string]error{"doomed": errors.New("always fails")}}
	q, db, conn := newTestQueue(t, exec, queue.Config{
		Workers:     1,
		MaxAttempts: 3,
		BackoffBase: time.Nanosecond,
		BackoffCap:  time.Nanosecond,
	})
	ctx := context.Background()

	req := mustRequest(t, "doomed", nil)
	id, err := q.Enqueue(ctx, req, 1)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	conn.SetOnline(true)
	// Drain until the job reaches a terminal state; backoff is
	// effectively zero so each pass can retry immediately.
	deadline := time.Now().Add(5 * time.Second)
	for {
		q.Drain(ctx)
		job, err := db.GetJob(ctx, id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == store.JobFailed {
			if job.Attempts != 3 {
				t.Fatalf("attempts = %d, want exactly 3", job.Attempts)
			}
			if job.LastError == "" {
				t.Fatal("expected last_error to be recorded")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never failed; status = %s", job.Status)
		}
		time.Sleep(time.Millisecond)
	}

	if n := len(exec.executed()); n != 3 {
		t.Fatalf("executions = %d, want exactly 3", n)
	}

	_, status, err := q.Result(ctx, id)
	if !errors.Is(err, invoke.ErrJobFailed) {
		t.Fatalf("result err = %v, want ErrJobFailed", err)
	}
	if status != store.JobFailed {
		t.Fatalf("result status = %s", status)
	}
}

func TestRetryJobResetsFailed(t *testing.T) {
	exec := &fakeExec{fail: map[string]error{"flaky": errors.New("down")}}
	q, db, conn := newTestQueue(t, exec, queue.Config{
		Workers:     1,
		MaxAttempts: 1,
		BackoffBase: time.Nanosecond,
	})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, mustRequest(t, "flaky", nil), 1)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	conn.SetOnline(true)
	q.Drain(ctx)

	job, _ := db.GetJob(ctx, id)
	if job.Status != store.JobFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}

	// Backend recovers; operator retries.
	exec.mu.Lock()
	delete(exec.fail, "flaky")
	exec.mu.Unlock()

	if err := q.RetryJob(ctx, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	q.Drain(ctx)

	job, _ = db.GetJob(ctx, id)
	if job.Status != store.JobCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
}

func TestClearCompletedAndFailed(t *testing.T) {
	exec := &fakeExec{fail: map[string]error{"bad": errors.New("nope")}}
	q, _, conn := newTestQueue(t, exec, queue.Config{
		Workers:     1,
		MaxAttempts: 1,
		BackoffBase: time.Nanosecond,
	})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, mustRequest(t, "good", nil), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, mustRequest(t, "bad", nil), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	conn.SetOnline(true)
	q.Drain(ctx)

	n, err := q.ClearCompleted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("clear completed: n=%d err=%v", n, err)
	}
	n, err = q.ClearFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("clear failed: n=%d err=%v", n, err)
	}

	counts, _ := q.Status(ctx)
	if counts != (store.QueueCounts{}) {
		t.Fatalf("counts = %+v, want empty", counts)
	}
}

func TestRunDrainsOnConnectivityRestored(t *testing.T) {
	exec := &fakeExec{}
	q, db, conn := newTestQueue(t, exec, queue.Config{
		Workers:       1,
		DrainInterval: time.Hour, // only the connectivity event can trigger
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := q.Enqueue(ctx, mustRequest(t, "t", nil), 1)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	go q.Run(ctx)
	time.Sleep(20 * time.Millisecond) // let Run subscribe
	conn.SetOnline(true)

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := db.GetJob(ctx, id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == store.JobCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not drained after connectivity restore; status = %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	payload, status, err := q.Result(ctx, id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if status != store.JobCompleted || string(payload) != `"ok"` {
		t.Fatalf("result = %s (%s)", payload, status)
	}
}
