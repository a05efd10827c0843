package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/tidewater/toolroute/internal/invoke"
)

func TestRecordAggregates(t *testing.T) {
	m := NewMonitor()

	m.Record(invoke.RouteLocal, "word_count", 10*time.Millisecond, true)
	m.Record(invoke.RouteLocal, "word_count", 30*time.Millisecond, false)
	m.Record(invoke.RouteRemote, "build_graph", 200*time.Millisecond, true)

	snap := m.Snapshot()

	local := snap.Routes[invoke.RouteLocal]
	if local.Count != 2 || local.SuccessCount != 1 || local.FailureCount != 1 {
		t.Fatalf("local = %+v", local)
	}
	if local.MinLatency != 10*time.Millisecond || local.MaxLatency != 30*time.Millisecond {
		t.Fatalf("local min/max = %v/%v", local.MinLatency, local.MaxLatency)
	}
	if local.AvgLatency() != 20*time.Millisecond {
		t.Fatalf("avg = %v, want 20ms", local.AvgLatency())
	}
	if snap.Tools["word_count"] != 2 {
		t.Fatalf("tools = %+v", snap.Tools)
	}
}

func TestSnapshotIsRepeatableRead(t *testing.T) {
	m := NewMonitor()
	m.Record(invoke.RouteLocal, "t", time.Millisecond, true)

	a := m.Snapshot()
	b := m.Snapshot()
	if a.Routes[invoke.RouteLocal].Count != b.Routes[invoke.RouteLocal].Count {
		t.Fatal("snapshot mutated state")
	}

	// Mutating the snapshot copy must not touch the monitor.
	a.Routes[invoke.RouteLocal] = RouteStats{Count: 99}
	if m.Snapshot().Routes[invoke.RouteLocal].Count != 1 {
		t.Fatal("snapshot shares state with monitor")
	}
}

func TestCacheAndQueueCounters(t *testing.T) {
	m := NewMonitor()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()
	m.SetQueueDepth(7)
	now := time.Now().UTC()
	m.SetLastSync(now)

	snap := m.Snapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 2 {
		t.Fatalf("cache counters = %d/%d", snap.CacheHits, snap.CacheMisses)
	}
	if snap.QueueDepth != 7 {
		t.Fatalf("queue depth = %d", snap.QueueDepth)
	}
	if !snap.LastSyncTime.Equal(now) {
		t.Fatalf("last sync = %v", snap.LastSyncTime)
	}
}

func TestReset(t *testing.T) {
	m := NewMonitor()
	m.Record(invoke.RouteQueue, "t", time.Second, false)
	m.RecordCacheHit()
	m.Reset()

	snap := m.Snapshot()
	if len(snap.Routes) != 0 || snap.CacheHits != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
}

func TestExportJSON(t *testing.T) {
	m := NewMonitor()
	m.Record(invoke.RouteLocal, "t", time.Millisecond, true)

	data, err := m.Export("json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), `"local"`) {
		t.Fatalf("json export missing route: %s", data)
	}
}

func TestExportCSV(t *testing.T) {
	m := NewMonitor()
	m.Record(invoke.RouteRemote, "t", 100*time.Millisecond, true)
	m.RecordCacheHit()

	data, err := m.Export("csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "route,count,success,failure") {
		t.Fatalf("csv header missing: %s", out)
	}
	if !strings.Contains(out, "remote,1,1,0,100") {
		t.Fatalf("csv missing remote row: %s", out)
	}
	if !strings.Contains(out, "cache_hits,1") {
		t.Fatalf("csv missing cache_hits row: %s", out)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	m := NewMonitor()
	if _, err := m.Export("xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
