package api

import (
	"net/http"

	"github.com/tidewater/toolroute/internal/cache"
	"github.com/tidewater/toolroute/internal/invoke"
)

type cacheHandler struct {
	cache *cache.ResultCache
}

func (h *cacheHandler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

type invalidateRequest struct {
	Fingerprint string         `json:"fingerprint,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// invalidate drops a single cached result, addressed either by raw
// fingerprint or by tool plus params.
func (h *cacheHandler) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fp := req.Fingerprint
	if fp == "" {
		if req.Tool == "" {
			writeError(w, http.StatusBadRequest, "fingerprint or tool is required")
			return
		}
		inv, err := invoke.NewRequest(req.Tool, req.Params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fp = inv.Fingerprint()
	}

	h.cache.Invalidate(fp)
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *cacheHandler) flush(w http.ResponseWriter, _ *http.Request) {
	h.cache.Flush()
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
