package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/service"
)

// JobHandlers serves the worker side of the run queue.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// Reserve leases the next job. It answers 204 when none arrives within the
// requested wait.
func (h *JobHandlers) Reserve(w http.ResponseWriter, r *http.Request) {
	visibility, err := parseDurationQuery(r, "visibility")
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	wait, err := parseDurationQuery(r, "wait")
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	job, err := h.Svc.Reserve(r.Context(), service.ReserveOptions{Visibility: visibility, Wait: wait})
	switch {
	case errors.Is(err, model.ErrNoJobsAvailable):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		if r.Context().Err() != nil {
			return
		}
		writeServiceError(w, r, h.Logger, err)
	default:
		WriteJSON(w, http.StatusOK, job)
	}
}

// Heartbeat extends a job lease.
func (h *JobHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	extend, err := parseDurationQuery(r, "extend")
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	ok, err := h.Svc.Heartbeat(r.Context(), r.PathValue("id"), extend)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// Ack deletes a finished job.
func (h *JobHandlers) Ack(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Svc.Ack(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// Fail releases a job for retry with an error message.
func (h *JobHandlers) Fail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Error string `json:"error"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}

	res, err := h.Svc.Fail(r.Context(), r.PathValue("id"), strings.TrimSpace(body.Error))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Stats returns job counts by status.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
