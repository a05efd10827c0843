package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolFunc is a single in-process tool implementation.
type ToolFunc func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Local runs tools in-process. Tools are either native Go functions or
// scripts executed in an embedded sandboxed runtime (see script.go).
// Invocations respect the caller's context deadline: an invocation that
// exceeds it is abandoned, not awaited.
type Local struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewLocal creates an empty local executor.
func NewLocal() *Local {
	return &Local{tools: make(map[string]ToolFunc)}
}

// Register adds a native tool implementation, replacing any previous one.
func (l *Local) Register(name string, fn ToolFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tools[name] = fn
}

// RegisterScript compiles src and registers it as a scripted tool. The
// script must define a run(params) function.
func (l *Local) RegisterScript(name, src string) error {
	st, err := compileScript(name, src)
	if err != nil {
		return fmt.Errorf("compile script for tool %s: %w", name, err)
	}
	l.Register(name, st.invoke)
	return nil
}

// Has reports whether a tool has a local implementation.
func (l *Local) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.tools[name]
	return ok
}

type localResult struct {
	data json.RawMessage
	err  error
}

// Invoke runs the tool, bounded by ctx. When the deadline fires the
// in-flight tool call is left to finish in its goroutine and its result
// is discarded.
func (l *Local) Invoke(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	l.mu.RLock()
	fn, ok := l.tools[tool]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", tool, ErrNotImplemented)
	}

	ch := make(chan localResult, 1)
	go func() {
		data, err := fn(ctx, params)
		ch <- localResult{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
