package api

import (
	"net/http"

	"github.com/tidewater/toolroute/internal/cache"
	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/executor"
	"github.com/tidewater/toolroute/internal/metrics"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/router"
	"github.com/tidewater/toolroute/internal/store"
)

// RouterDeps holds the dependencies needed by the HTTP API router.
type RouterDeps struct {
	Store    store.Store
	Router   *router.Router
	Queue    *queue.Queue
	Cache    *cache.ResultCache
	Monitor  *metrics.Monitor
	Conn     *connectivity.Monitor
	Registry *classify.Registry
	Local    *executor.Local
}

// NewRouter creates an http.Handler with all API routes.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	ex := &executeHandler{router: deps.Router}
	mux.HandleFunc("POST /api/v1/execute", ex.execute)

	tools := &toolsHandler{registry: deps.Registry, local: deps.Local}
	mux.HandleFunc("GET /api/v1/tools", tools.list)

	qh := &queueHandler{queue: deps.Queue, store: deps.Store}
	mux.HandleFunc("GET /api/v1/queue", qh.status)
	mux.HandleFunc("GET /api/v1/queue/jobs", qh.list)
	mux.HandleFunc("GET /api/v1/queue/jobs/{id}", qh.get)
	mux.HandleFunc("GET /api/v1/queue/jobs/{id}/result", qh.result)
	mux.HandleFunc("DELETE /api/v1/queue/jobs/{id}", qh.remove)
	mux.HandleFunc("POST /api/v1/queue/jobs/{id}/retry", qh.retry)
	mux.HandleFunc("POST /api/v1/queue/drain", qh.drain)
	mux.HandleFunc("DELETE /api/v1/queue/completed", qh.clearCompleted)
	mux.HandleFunc("DELETE /api/v1/queue/failed", qh.clearFailed)

	mh := &metricsHandler{monitor: deps.Monitor}
	mux.HandleFunc("GET /api/v1/metrics", mh.snapshot)
	mux.HandleFunc("GET /api/v1/metrics/export", mh.export)
	mux.HandleFunc("POST /api/v1/metrics/reset", mh.reset)

	ch := &cacheHandler{cache: deps.Cache}
	mux.HandleFunc("GET /api/v1/cache/stats", ch.stats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", ch.invalidate)
	mux.HandleFunc("POST /api/v1/cache/flush", ch.flush)

	hh := &healthHandler{store: deps.Store, conn: deps.Conn}
	mux.HandleFunc("GET /api/v1/health", hh.check)

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}
