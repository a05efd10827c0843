package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tidewater/toolroute/internal/invoke"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/store"
)

type queueHandler struct {
	queue *queue.Queue
	store store.JobStore
}

type queueStatusResponse struct {
	Counts  store.QueueCounts `json:"counts"`
	Pending int               `json:"pending"`
}

func (h *queueHandler) status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queueStatusResponse{Counts: counts, Pending: counts.Pending()})
}

type jobListResponse struct {
	Jobs  []store.QueuedJob `json:"jobs"`
	Total int               `json:"total"`
}

func (h *queueHandler) list(w http.ResponseWriter, r *http.Request) {
	var f store.JobFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st := store.JobStatus(s)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		f.Status = &st
	}
	if tool := q.Get("tool"); tool != "" {
		f.Tool = &tool
	}
	if lim := q.Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	if off := q.Get("offset"); off != "" {
		n, err := strconv.Atoi(off)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		f.Offset = n
	}

	jobs, total, err := h.store.ListJobs(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []store.QueuedJob{}
	}
	writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Total: total})
}

func (h *queueHandler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type jobResultResponse struct {
	Status store.JobStatus `json:"status"`
	Result any             `json:"result,omitempty"`
}

// result is the polling endpoint for a deferred invocation: 200 with
// the payload once completed, 410 once permanently failed, 202 while
// the job is still pending.
func (h *queueHandler) result(w http.ResponseWriter, r *http.Request) {
	payload, status, err := h.queue.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if errors.Is(err, invoke.ErrJobFailed) {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status != store.JobCompleted {
		writeJSON(w, http.StatusAccepted, jobResultResponse{Status: status})
		return
	}
	writeJSON(w, http.StatusOK, jobResultResponse{Status: status, Result: payload})
}

func (h *queueHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.RemoveJob(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *queueHandler) retry(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.RetryJob(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// drain triggers an immediate drain pass without waiting for the ticker
// or a connectivity event.
func (h *queueHandler) drain(w http.ResponseWriter, r *http.Request) {
	// Detach from the request context so the pass survives the response.
	go h.queue.Drain(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "draining"})
}

func (h *queueHandler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.ClearCompleted(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *queueHandler) clearFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.ClearFailed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
