package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/service"
)

// RunHandlers serves the operator API for runs and their prospects.
type RunHandlers struct {
	Dispatcher *service.DispatcherService
	Projection *service.ProjectionService
	Logger     *slog.Logger
}

// StartRun dispatches a new run.
func (h *RunHandlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var req model.StartRunRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	handle, err := h.Dispatcher.StartRun(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, handle)
}

// ListRuns returns the most recent runs, newest first.
func (h *RunHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Projection.ListRuns(r.Context(), ParseLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// GetRun returns one run view.
func (h *RunHandlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Projection.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ListProspects returns the most recent prospects, newest first.
func (h *RunHandlers) ListProspects(w http.ResponseWriter, r *http.Request) {
	prospects, err := h.Projection.ListProspects(r.Context(), ParseLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, prospects)
}

// GetProspect returns a prospect with its analysis and contacts.
func (h *RunHandlers) GetProspect(w http.ResponseWriter, r *http.Request) {
	p, err := h.Projection.GetProspect(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}
