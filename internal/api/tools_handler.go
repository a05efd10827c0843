package api

import (
	"net/http"
	"time"

	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/executor"
)

type toolsHandler struct {
	registry *classify.Registry
	local    *executor.Local
}

type toolInfo struct {
	Name         string        `json:"name"`
	Tier         classify.Tier `json:"tier"`
	LocalTimeout time.Duration `json:"local_timeout_ns"`
	CacheTTL     time.Duration `json:"cache_ttl_ns"`
	HasLocal     bool          `json:"has_local"`
}

func (h *toolsHandler) list(w http.ResponseWriter, _ *http.Request) {
	descs := h.registry.List()
	infos := make([]toolInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, toolInfo{
			Name:         d.Name,
			Tier:         d.Tier,
			LocalTimeout: d.LocalTimeout,
			CacheTTL:     d.CacheTTL,
			HasLocal:     h.local.Has(d.Name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}
