package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tidewater/toolroute/internal/cache"
	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/executor"
	"github.com/tidewater/toolroute/internal/metrics"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/router"
	"github.com/tidewater/toolroute/internal/store/sqlite"
)

type stubRemote struct{ err error }

func (s *stubRemote) Invoke(_ context.Context, _ string, _ json.RawMessage) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"remote":true}`), nil
}

func newTestHandler(t *testing.T) (http.Handler, *connectivity.Monitor) {
	t.Helper()

	db, err := sqlite.New(context.Background(), t.TempDir()+"/api.db")
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg := classify.NewRegistry()
	for _, d := range []classify.Descriptor{
		{Name: "word_count", Tier: classify.TierSimple},
		{Name: "analyze", Tier: classify.TierComplex},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	local := executor.NewLocal()
	local.Register("word_count", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"words":3}`), nil
	})

	conn := connectivity.NewMonitor(nil, time.Hour)
	monitor := metrics.NewMonitor()
	rc := cache.NewResultCache(128, 1<<20)

	rt := router.New(reg, rc, local, &stubRemote{err: executor.ErrUnreachable}, conn, monitor)
	q := queue.New(db, rt, conn, monitor, queue.Config{MaxPending: 3})
	rt.SetQueue(q)

	h := NewRouter(RouterDeps{
		Store:    db,
		Router:   rt,
		Queue:    q,
		Cache:    rc,
		Monitor:  monitor,
		Conn:     conn,
		Registry: reg,
		Local:    local,
	})
	return h, conn
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestExecuteLocalThenCache(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"word_count","params":{"text":"one two three"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Route != "local" {
		t.Fatalf("route = %s", resp.Route)
	}

	rr = doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"word_count","params":{"text":"one two three"}}`)
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Route != "cache" {
		t.Fatalf("route = %s, want cache", resp.Route)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"missing","params":{}}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestExecuteBadBody(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestExecuteDefersComplexOffline(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"analyze","params":{"doc":1}}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("missing job_id")
	}

	// The job is visible through the queue endpoints.
	rr = doJSON(t, h, "GET", "/api/v1/queue", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("queue status = %d", rr.Code)
	}
	var qs queueStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &qs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if qs.Counts.Queued != 1 {
		t.Fatalf("queued = %d, want 1", qs.Counts.Queued)
	}

	rr = doJSON(t, h, "GET", "/api/v1/queue/jobs/"+resp.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get job = %d", rr.Code)
	}

	// Still pending: the result endpoint reports the status.
	rr = doJSON(t, h, "GET", "/api/v1/queue/jobs/"+resp.JobID+"/result", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("result = %d, want 202", rr.Code)
	}
}

func TestExecuteQueueFull(t *testing.T) {
	h, _ := newTestHandler(t)

	for i := 0; i < 3; i++ {
		body := `{"tool":"analyze","params":{"doc":` + strconv.Itoa(i) + `}}`
		rr := doJSON(t, h, "POST", "/api/v1/execute", body)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("enqueue %d: status = %d", i, rr.Code)
		}
	}

	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"analyze","params":{"doc":99}}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
}

func TestQueueJobLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"analyze","params":{"doc":1}}`)
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = doJSON(t, h, "GET", "/api/v1/queue/jobs?status=queued", "")
	var list jobListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 || len(list.Jobs) != 1 {
		t.Fatalf("list = %+v", list)
	}

	rr = doJSON(t, h, "DELETE", "/api/v1/queue/jobs/"+resp.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("remove = %d", rr.Code)
	}
	rr = doJSON(t, h, "GET", "/api/v1/queue/jobs/"+resp.JobID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get removed = %d, want 404", rr.Code)
	}
	rr = doJSON(t, h, "POST", "/api/v1/queue/jobs/"+resp.JobID+"/retry", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("retry removed = %d, want 404", rr.Code)
	}
}

func TestQueueListRejectsBadFilter(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, "GET", "/api/v1/queue/jobs?status=bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"word_count","params":{"text":"a"}}`)

	rr := doJSON(t, h, "GET", "/api/v1/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Routes["local"].Count != 1 {
		t.Fatalf("local count = %d", snap.Routes["local"].Count)
	}

	rr = doJSON(t, h, "GET", "/api/v1/metrics/export?format=csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	rr = doJSON(t, h, "GET", "/api/v1/metrics/export?format=xml", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad format = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, "POST", "/api/v1/metrics/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset = %d", rr.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"word_count","params":{"text":"a"}}`)

	rr := doJSON(t, h, "GET", "/api/v1/cache/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats = %d", rr.Code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("entries = %d", stats.Entries)
	}

	rr = doJSON(t, h, "POST", "/api/v1/cache/invalidate", `{"tool":"word_count","params":{"text":"a"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("invalidate = %d", rr.Code)
	}

	// Invalidated entry forces re-execution.
	rr = doJSON(t, h, "POST", "/api/v1/execute", `{"tool":"word_count","params":{"text":"a"}}`)
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Route != "local" {
		t.Fatalf("route after invalidate = %s, want local", resp.Route)
	}

	rr = doJSON(t, h, "POST", "/api/v1/cache/flush", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("flush = %d", rr.Code)
	}
	rr = doJSON(t, h, "POST", "/api/v1/cache/invalidate", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty invalidate = %d, want 400", rr.Code)
	}
}

func TestToolsAndHealth(t *testing.T) {
	h, conn := newTestHandler(t)
	conn.SetOnline(true)

	rr := doJSON(t, h, "GET", "/api/v1/tools", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("tools = %d", rr.Code)
	}
	var tl struct {
		Tools []toolInfo `json:"tools"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &tl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tl.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(tl.Tools))
	}

	rr = doJSON(t, h, "GET", "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}
	var hr healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &hr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hr.Status != "ok" || !hr.Online {
		t.Fatalf("health = %+v", hr)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes valid json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"ok"}`))
		var p payload
		if err := decodeJSON(req, &p); err != nil {
			t.Fatalf("decodeJSON returned error: %v", err)
		}
		if p.Name != "ok" {
			t.Fatalf("expected name=ok, got %q", p.Name)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"ok","extra":"nope"}`))
		var p payload
		if err := decodeJSON(req, &p); err == nil {
			t.Fatal("expected unknown field error, got nil")
		}
	})

	t.Run("rejects multiple json values", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"ok"}{"name":"again"}`))
		var p payload
		if err := decodeJSON(req, &p); err == nil {
			t.Fatal("expected trailing JSON error, got nil")
		}
	})
}
