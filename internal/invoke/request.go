package invoke

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Request is a single tool invocation.
type Request struct {
	Tool        string
	Params      map[string]any
	RequestedAt time.Time

	fingerprint string
	rawParams   json.RawMessage
}

// NewRequest validates the tool name and parameters and computes the
// canonical fingerprint. Parameters must be JSON-serializable scalars
// or collections.
func NewRequest(tool string, params map[string]any) (*Request, error) {
	if tool == "" {
		return nil, fmt.Errorf("%w: tool name is empty", ErrInvalidParameters)
	}
	raw, err := CanonicalParams(params)
	if err != nil {
		return nil, err
	}

	r := &Request{
		Tool:        tool,
		Params:      params,
		RequestedAt: time.Now().UTC(),
		rawParams:   raw,
	}
	r.fingerprint = FingerprintRaw(tool, raw)
	return r, nil
}

// FingerprintRaw hashes a tool name with already-canonical parameter
// bytes. Used by the drain loop, which holds the stored serialization
// rather than a live Request.
func FingerprintRaw(tool string, raw json.RawMessage) string {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	sum := sha256.Sum256(append([]byte(tool+"\x00"), raw...))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the deterministic hash of the tool name and its
// canonicalized parameters. Used as the cache key and the queue
// deduplication key.
func (r *Request) Fingerprint() string {
	return r.fingerprint
}

// RawParams returns the canonical JSON serialization of the parameters.
func (r *Request) RawParams() json.RawMessage {
	return r.rawParams
}

// CanonicalParams serializes params deterministically. encoding/json
// writes map keys in sorted order at every nesting level, so equal
// parameter sets always produce identical bytes.
func CanonicalParams(params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return raw, nil
}
