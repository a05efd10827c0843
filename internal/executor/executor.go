// Package executor provides the local (in-process) and remote (backend
// service) tool invokers. Both implement the same contract; the router
// chooses between them per tier policy.
package executor

import (
	"context"
	"encoding/json"
	"errors"
)

// Invoker executes a named tool with canonical JSON parameters.
type Invoker interface {
	Invoke(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error)
}

var (
	// ErrUnreachable is a distinguished transport failure: the remote
	// endpoint could not be reached at all. The router hands the request
	// to the offline queue without retrying at this layer.
	ErrUnreachable = errors.New("remote endpoint unreachable")

	// ErrNotImplemented means the local executor has no implementation
	// registered for the tool.
	ErrNotImplemented = errors.New("no local implementation")
)
