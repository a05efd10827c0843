package api

import (
	"errors"
	"net/http"

	"github.com/tidewater/toolroute/internal/invoke"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/router"
)

type executeHandler struct {
	router *router.Router
}

type executeRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type executeResponse struct {
	Route    invoke.Route    `json:"route"`
	Result   any             `json:"result,omitempty"`
	JobID    string          `json:"job_id,omitempty"`
	Priority int             `json:"priority,omitempty"`
}

func (h *executeHandler) execute(w http.ResponseWriter, r *http.Request) {
	var body executeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := invoke.NewRequest(body.Tool, body.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.router.Execute(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, invoke.ErrUnknownTool):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, invoke.ErrInvalidParameters):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, invoke.ErrLocalTimeout):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := executeResponse{Route: out.Route}
	if out.Deferred != nil {
		resp.JobID = out.Deferred.JobID
		resp.Priority = out.Deferred.Priority
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	resp.Result = out.Result
	writeJSON(w, http.StatusOK, resp)
}
