package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TokenSource supplies the bearer token injected on every request. May
// return the empty string when the backend needs no authentication.
type TokenSource func() string

// Remote invokes tools via JSON-RPC over HTTP POST against a backend
// endpoint. Transport failures are reported as ErrUnreachable;
// application-level failures from the tool come back as ordinary errors.
type Remote struct {
	endpoint string
	client   *http.Client
	token    TokenSource
	reqID    atomic.Int64
}

// NewRemote creates a remote executor. A zero timeout defaults to 60s.
func NewRemote(endpoint string, timeout time.Duration, token TokenSource) *Remote {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		token:    token,
	}
}

// Invoke sends a tools/invoke call for the named tool.
func (r *Remote) Invoke(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	rpcParams, err := json.Marshal(map[string]any{
		"name":      tool,
		"arguments": json.RawMessage(normalize(params)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      r.reqID.Add(1),
		Method:  "tools/invoke",
		Params:  rpcParams,
	}

	resp, err := r.doRPC(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("remote tool %s: %w", tool, resp.Error)
	}
	return resp.Result, nil
}

// Ping checks reachability with a lightweight ping call. Any HTTP
// response, including an error status, counts as reachable.
func (r *Remote) Ping(ctx context.Context) error {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      r.reqID.Add(1),
		Method:  "ping",
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (r *Remote) doRPC(ctx context.Context, req jsonRPCRequest) (*jsonRPCResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.token != nil {
		if tok := r.token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: backend returned %d", ErrUnreachable, resp.StatusCode)
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, data)
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rpcResp, nil
}

func normalize(params json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return json.RawMessage(`{}`)
	}
	return params
}
