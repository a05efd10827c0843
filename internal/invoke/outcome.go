package invoke

import "encoding/json"

// Route identifies where an invocation was resolved.
type Route string

const (
	RouteCache  Route = "cache"
	RouteLocal  Route = "local"
	RouteRemote Route = "remote"
	RouteQueue  Route = "queue"
)

// Deferred is returned instead of a direct result when a request has
// been handed to the offline queue. The caller polls the job.
type Deferred struct {
	JobID    string `json:"job_id"`
	Priority int    `json:"priority"`
}

// Outcome is the terminal result of a routed invocation: either a
// payload or a deferred handle, never both.
type Outcome struct {
	Route    Route           `json:"route"`
	Result   json.RawMessage `json:"result,omitempty"`
	Deferred *Deferred       `json:"deferred,omitempty"`
}
