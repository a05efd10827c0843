package metrics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/tidewater/toolroute/internal/invoke"
)

// Export renders a snapshot in the requested format ("json" or "csv").
func (m *Monitor) Export(format string) ([]byte, error) {
	snap := m.Snapshot()
	switch format {
	case "json", "":
		return json.MarshalIndent(snap, "", "  ")
	case "csv":
		return exportCSV(snap)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportCSV(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"route", "count", "success", "failure",
		"total_ms", "min_ms", "max_ms", "avg_ms",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	routes := make([]string, 0, len(snap.Routes))
	for r := range snap.Routes {
		routes = append(routes, string(r))
	}
	sort.Strings(routes)

	for _, r := range routes {
		s := snap.Routes[invoke.Route(r)]
		row := []string{
			r,
			strconv.FormatInt(s.Count, 10),
			strconv.FormatInt(s.SuccessCount, 10),
			strconv.FormatInt(s.FailureCount, 10),
			strconv.FormatInt(s.TotalLatency.Milliseconds(), 10),
			strconv.FormatInt(s.MinLatency.Milliseconds(), 10),
			strconv.FormatInt(s.MaxLatency.Milliseconds(), 10),
			strconv.FormatInt(s.AvgLatency().Milliseconds(), 10),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	global := [][]string{
		{"cache_hits", strconv.FormatInt(snap.CacheHits, 10), "", "", "", "", "", ""},
		{"cache_misses", strconv.FormatInt(snap.CacheMisses, 10), "", "", "", "", "", ""},
		{"queue_depth", strconv.FormatInt(snap.QueueDepth, 10), "", "", "", "", "", ""},
	}
	for _, row := range global {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
