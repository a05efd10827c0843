// Package router decides where each tool invocation executes:
// immediately in-process, remotely against the backend, or deferred
// into the offline queue. It is the sole writer of the result cache.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidewater/toolroute/internal/cache"
	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/executor"
	"github.com/tidewater/toolroute/internal/invoke"
	"github.com/tidewater/toolroute/internal/metrics"
)

// simpleCeiling is the hard safety deadline for simple-tier tools,
// which otherwise run without a timeout.
const simpleCeiling = 30 * time.Second

// Enqueuer hands a request to the offline queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *invoke.Request, priority int) (string, error)
}

// Router orchestrates cache, classifier, executors, and queue.
type Router struct {
	registry *classify.Registry
	cache    *cache.ResultCache
	local    executor.Invoker
	remote   executor.Invoker
	conn     *connectivity.Monitor
	queue    Enqueuer
	monitor  *metrics.Monitor
}

// New creates a router. All collaborators are required except queue,
// which may be set later via SetQueue to break the construction cycle
// with the offline queue.
func New(
	registry *classify.Registry,
	rc *cache.ResultCache,
	local executor.Invoker,
	remote executor.Invoker,
	conn *connectivity.Monitor,
	monitor *metrics.Monitor,
) *Router {
	return &Router{
		registry: registry,
		cache:    rc,
		local:    local,
		remote:   remote,
		conn:     conn,
		monitor:  monitor,
	}
}

// SetQueue wires the offline queue. Must be called before Execute.
func (r *Router) SetQueue(q Enqueuer) {
	r.queue = q
}

// Execute routes a single invocation. The caller always receives a
// result, a deferred handle, or a configuration-class error; transient
// infrastructure failures never surface directly.
func (r *Router) Execute(ctx context.Context, req *invoke.Request) (*invoke.Outcome, error) {
	// Cache first: the only path with no execution cost.
	if payload, ok := r.cache.Get(req.Fingerprint()); ok {
		r.monitor.RecordCacheHit()
		return &invoke.Outcome{Route: invoke.RouteCache, Result: payload}, nil
	}
	r.monitor.RecordCacheMiss()

	desc, ok := r.registry.Lookup(req.Tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", invoke.ErrUnknownTool, req.Tool)
	}

	switch desc.Tier {
	case classify.TierSimple:
		return r.executeSimple(ctx, req, desc)
	case classify.TierMedium:
		return r.executeMedium(ctx, req, desc)
	default:
		return r.executeComplex(ctx, req, desc)
	}
}

// executeSimple always runs locally with only the hard safety ceiling.
// Simple tools are assumed deterministic and side-effect-free, so a
// failure is surfaced directly, never retried or deferred.
func (r *Router) executeSimple(ctx context.Context, req *invoke.Request, desc classify.Descriptor) (*invoke.Outcome, error) {
	payload, latency, err := r.runLocal(ctx, req, simpleCeiling)
	r.monitor.Record(invoke.RouteLocal, req.Tool, latency, err == nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: tool %s", invoke.ErrLocalTimeout, req.Tool)
		}
		return nil, err
	}

	r.cache.Put(req.Fingerprint(), payload, desc.CacheTTL)
	return &invoke.Outcome{Route: invoke.RouteLocal, Result: payload}, nil
}

// executeMedium tries local within the tier timeout, falls back to
// remote with a fresh network deadline, and defers when both fail.
func (r *Router) executeMedium(ctx context.Context, req *invoke.Request, desc classify.Descriptor) (*invoke.Outcome, error) {
	payload, latency, err := r.runLocal(ctx, req, desc.LocalTimeout)
	r.monitor.Record(invoke.RouteLocal, req.Tool, latency, err == nil)
	if err == nil {
		r.cache.Put(req.Fingerprint(), payload, desc.CacheTTL)
		return &invoke.Outcome{Route: invoke.RouteLocal, Result: payload}, nil
	}
	slog.Debug("local execution failed, falling back",
		"tool", req.Tool, "error", err)

	if r.conn.Online() {
		payload, latency, rerr := r.runRemote(ctx, req)
		r.monitor.Record(invoke.RouteRemote, req.Tool, latency, rerr == nil)
		if rerr == nil {
			r.cache.Put(req.Fingerprint(), payload, desc.CacheTTL)
			return &invoke.Outcome{Route: invoke.RouteRemote, Result: payload}, nil
		}
		if errors.Is(rerr, executor.ErrUnreachable) {
			r.conn.SetOnline(false)
		}
		slog.Debug("remote execution failed, deferring",
			"tool", req.Tool, "error", rerr)
	}

	return r.deferToQueue(ctx, req, desc)
}

// executeComplex skips local entirely: remote when online, otherwise
// straight to the queue without attempting the call.
func (r *Router) executeComplex(ctx context.Context, req *invoke.Request, desc classify.Descriptor) (*invoke.Outcome, error) {
	if r.conn.Online() {
		payload, latency, err := r.runRemote(ctx, req)
		r.monitor.Record(invoke.RouteRemote, req.Tool, latency, err == nil)
		if err == nil {
			r.cache.Put(req.Fingerprint(), payload, desc.CacheTTL)
			return &invoke.Outcome{Route: invoke.RouteRemote, Result: payload}, nil
		}
		if errors.Is(err, executor.ErrUnreachable) {
			r.conn.SetOnline(false)
		}
		slog.Debug("remote execution failed, deferring",
			"tool", req.Tool, "error", err)
	}

	return r.deferToQueue(ctx, req, desc)
}

func (r *Router) deferToQueue(ctx context.Context, req *invoke.Request, desc classify.Descriptor) (*invoke.Outcome, error) {
	priority := desc.Tier.QueuePriority()
	start := time.Now()
	jobID, err := r.queue.Enqueue(ctx, req, priority)
	r.monitor.Record(invoke.RouteQueue, req.Tool, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("defer %s: %w", req.Tool, err)
	}

	slog.Info("request deferred", "tool", req.Tool, "job_id", jobID)
	return &invoke.Outcome{
		Route:    invoke.RouteQueue,
		Deferred: &invoke.Deferred{JobID: jobID, Priority: priority},
	}, nil
}

// ExecuteJob is the execution path the drain loop uses for a deferred
// job. Jobs exist because immediate execution failed, so they always go
// remote; a success is cached exactly like a live invocation.
func (r *Router) ExecuteJob(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	desc, ok := r.registry.Lookup(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", invoke.ErrUnknownTool, tool)
	}

	payload, err := r.remote.Invoke(ctx, tool, params)
	if err != nil {
		if errors.Is(err, executor.ErrUnreachable) {
			r.conn.SetOnline(false)
		}
		return nil, err
	}

	fp := invoke.FingerprintRaw(tool, params)
	r.cache.Put(fp, payload, desc.CacheTTL)
	return payload, nil
}

func (r *Router) runLocal(ctx context.Context, req *invoke.Request, timeout time.Duration) (json.RawMessage, time.Duration, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	payload, err := r.local.Invoke(ctx, req.Tool, req.RawParams())
	return payload, time.Since(start), err
}

func (r *Router) runRemote(ctx context.Context, req *invoke.Request) (json.RawMessage, time.Duration, error) {
	start := time.Now()
	payload, err := r.remote.Invoke(ctx, req.Tool, req.RawParams())
	return payload, time.Since(start), err
}
