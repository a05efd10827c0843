package cache

// Stats holds cache performance metrics.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	Cost      int64   `json:"cost_bytes"`
	HitRate   float64 `json:"hit_rate"`
}
