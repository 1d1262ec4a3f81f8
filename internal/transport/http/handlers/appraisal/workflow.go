package appraisalhandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/appraisal"
	"staffappraisal/internal/domain/workflow"
	"staffappraisal/internal/transport/http/api"
	"staffappraisal/internal/transport/http/middleware"
	"staffappraisal/internal/transport/http/shared"
)

type stepRequest struct {
	Step string `json:"step"`
	From string `json:"from"`
}

func (h *Handler) handleCurrentStep(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	pos, err := h.Service.CurrentStep(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "workflow_failed", requestID)
		return
	}
	api.Success(w, pos, requestID)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload stepRequest
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}
	decision, err := h.Service.Resume(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), workflow.Step(payload.Step))
	if err != nil {
		shared.WriteError(w, err, "workflow_failed", requestID)
		return
	}
	api.Success(w, decision, requestID)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Service.Advance)
}

func (h *Handler) handleGoBack(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Service.GoBack)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, a appraisal.Actor, id string, from workflow.Step) (workflow.Step, error)) {
	requestID := middleware.GetRequestID(r.Context())
	var payload stepRequest
	if !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}
	from, err := workflow.ParseStep(payload.From)
	if err != nil {
		shared.WriteError(w, apperr.Invalid("from", err.Error()), "workflow_failed", requestID)
		return
	}
	step, err := fn(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), from)
	if err != nil {
		shared.WriteError(w, err, "workflow_failed", requestID)
		return
	}
	api.Success(w, map[string]workflow.Step{"step": step}, requestID)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	step, err := h.Service.Restart(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "workflow_failed", requestID)
		return
	}
	api.Success(w, map[string]workflow.Step{"step": step}, requestID)
}
