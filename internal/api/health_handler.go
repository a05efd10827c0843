package api

import (
	"net/http"
	"time"

	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/store"
)

var startTime = time.Now()

type healthHandler struct {
	store store.Store
	conn  *connectivity.Monitor
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int    `json:"uptime_seconds"`
	Online        bool   `json:"online"`
}

func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:        status,
		Version:       "0.1.0",
		UptimeSeconds: int(time.Since(startTime).Seconds()),
		Online:        h.conn.Online(),
	})
}
