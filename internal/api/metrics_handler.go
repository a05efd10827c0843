package api

import (
	"net/http"

	"github.com/tidewater/toolroute/internal/metrics"
)

type metricsHandler struct {
	monitor *metrics.Monitor
}

func (h *metricsHandler) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

func (h *metricsHandler) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	data, err := h.monitor.Export(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/json"
	if format == "csv" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *metricsHandler) reset(w http.ResponseWriter, _ *http.Request) {
	h.monitor.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
