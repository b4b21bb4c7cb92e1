package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/service"
)

// AudienceHandlers serves audience administration.
type AudienceHandlers struct {
	Svc    *service.AudienceService
	Logger *slog.Logger
}

func (h *AudienceHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	items, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *AudienceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAudienceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	a, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

func (h *AudienceHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

func (h *AudienceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAudienceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	a, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// Delete requires ?policy=cascade|detach.
func (h *AudienceHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Delete(r.Context(), r.PathValue("id"), r.URL.Query().Get("policy"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
