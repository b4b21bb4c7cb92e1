package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/service"
)

// WorkerHandlers accepts progress reports from workers.
type WorkerHandlers struct {
	Svc    *service.WorkerService
	Logger *slog.Logger
}

// TransitionRun reports a run status change.
func (h *WorkerHandlers) TransitionRun(w http.ResponseWriter, r *http.Request) {
	var req model.TransitionRunRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.RunID = r.PathValue("id")

	res, err := h.Svc.TransitionRun(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// AddProspect records a prospect discovered by a running run.
func (h *WorkerHandlers) AddProspect(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProspectRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.RunID = r.PathValue("id")

	p, err := h.Svc.AddProspect(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// RecordAnalysis stores the site analysis of a prospect.
func (h *WorkerHandlers) RecordAnalysis(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSiteAnalysisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.ProspectID = r.PathValue("id")

	a, err := h.Svc.RecordAnalysis(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

// AddContacts attaches contact details to a prospect.
func (h *WorkerHandlers) AddContacts(w http.ResponseWriter, r *http.Request) {
	var req model.AddContactsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.ProspectID = r.PathValue("id")

	contacts, err := h.Svc.AddContacts(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"contacts": contacts})
}
