// Package metrics accumulates per-route counters and timers used to
// observe routing behavior. Counters are monotonic within a process
// lifetime and reset only on explicit operator action.
package metrics

import (
	"sync"
	"time"

	"github.com/tidewater/toolroute/internal/invoke"
)

// RouteStats aggregates outcomes for a single route.
type RouteStats struct {
	Count        int64         `json:"count"`
	SuccessCount int64         `json:"success_count"`
	FailureCount int64         `json:"failure_count"`
	TotalLatency time.Duration `json:"total_latency_ns"`
	MinLatency   time.Duration `json:"min_latency_ns"`
	MaxLatency   time.Duration `json:"max_latency_ns"`
}

// AvgLatency returns the mean latency, or zero when no samples exist.
func (s RouteStats) AvgLatency() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Count)
}

// Snapshot is a point-in-time, repeatable read of all counters.
type Snapshot struct {
	Routes       map[invoke.Route]RouteStats `json:"routes"`
	Tools        map[string]int64            `json:"tools"`
	CacheHits    int64                       `json:"cache_hit_count"`
	CacheMisses  int64                       `json:"cache_miss_count"`
	QueueDepth   int64                       `json:"queue_depth"`
	LastSyncTime time.Time                   `json:"last_sync_time"`
	StartedAt    time.Time                   `json:"started_at"`
	TakenAt      time.Time                   `json:"taken_at"`
}

// Monitor is the process-wide metrics accumulator. Safe for concurrent
// use; all sections are short-held.
type Monitor struct {
	mu          sync.Mutex
	routes      map[invoke.Route]*RouteStats
	tools       map[string]int64
	cacheHits   int64
	cacheMisses int64
	queueDepth  int64
	lastSync    time.Time
	startedAt   time.Time
}

// NewMonitor creates a monitor with zeroed counters.
func NewMonitor() *Monitor {
	return &Monitor{
		routes:    make(map[invoke.Route]*RouteStats),
		tools:     make(map[string]int64),
		startedAt: time.Now().UTC(),
	}
}

// Record registers one terminal outcome for the route actually taken.
func (m *Monitor) Record(route invoke.Route, tool string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.routes[route]
	if !ok {
		s = &RouteStats{}
		m.routes[route] = s
	}
	s.Count++
	if success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
	s.TotalLatency += latency
	if latency > s.MaxLatency {
		s.MaxLatency = latency
	}
	if s.MinLatency == 0 || latency < s.MinLatency {
		s.MinLatency = latency
	}

	if tool != "" {
		m.tools[tool]++
	}
}

// RecordCacheHit increments the global cache hit counter.
func (m *Monitor) RecordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss increments the global cache miss counter.
func (m *Monitor) RecordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// SetQueueDepth records the current number of pending queued jobs.
func (m *Monitor) SetQueueDepth(depth int64) {
	m.mu.Lock()
	m.queueDepth = depth
	m.mu.Unlock()
}

// SetLastSync records the end of the most recent drain pass.
func (m *Monitor) SetLastSync(t time.Time) {
	m.mu.Lock()
	m.lastSync = t
	m.mu.Unlock()
}

// Snapshot returns a deep copy of all counters. Reading never mutates
// the underlying state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := make(map[invoke.Route]RouteStats, len(m.routes))
	for r, s := range m.routes {
		routes[r] = *s
	}
	tools := make(map[string]int64, len(m.tools))
	for t, n := range m.tools {
		tools[t] = n
	}

	return Snapshot{
		Routes:       routes,
		Tools:        tools,
		CacheHits:    m.cacheHits,
		CacheMisses:  m.cacheMisses,
		QueueDepth:   m.queueDepth,
		LastSyncTime: m.lastSync,
		StartedAt:    m.startedAt,
		TakenAt:      time.Now().UTC(),
	}
}

// Reset zeroes all counters. Operator action only.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = make(map[invoke.Route]*RouteStats)
	m.tools = make(map[string]int64)
	m.cacheHits = 0
	m.cacheMisses = 0
	m.queueDepth = 0
	m.lastSync = time.Time{}
	m.startedAt = time.Now().UTC()
}
