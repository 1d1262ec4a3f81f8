package appraisalhandler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"staffappraisal/internal/domain/appraisal"
	"staffappraisal/internal/domain/audit"
	"staffappraisal/internal/domain/auth"
	"staffappraisal/internal/platform/signature"
	"staffappraisal/internal/requestctx"
	"staffappraisal/internal/transport/http/api"
	"staffappraisal/internal/transport/http/middleware"
	"staffappraisal/internal/transport/http/shared"
)

type AuditReader interface {
	Count(ctx context.Context, appraisalID string, filter audit.Filter) (int, error)
	List(ctx context.Context, appraisalID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Service           *appraisal.Service
	Audit             AuditReader
	Signatures        signature.Store
	SignatureMaxBytes int64
	Idempotency       middleware.IdempotencyStore
}

func NewHandler(service *appraisal.Service, auditReader AuditReader, signatures signature.Store, signatureMaxBytes int64, idempotency middleware.IdempotencyStore) *Handler {
	return &Handler{
		Service:           service,
		Audit:             auditReader,
		Signatures:        signatures,
		SignatureMaxBytes: signatureMaxBytes,
		Idempotency:       idempotency,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermAppraisalRead)
	write := middleware.RequirePermission(auth.PermAppraisalWrite)

	r.Route("/appraisals", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Route("/{appraisalID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGet)
			r.With(write).Patch("/status", h.handleUpdateStatus)
			r.With(read).Get("/score", h.handleScore)
			r.With(middleware.RequirePermission(auth.PermAuditRead)).Get("/audit", h.handleAudit)

			r.With(read).Get("/workflow", h.handleCurrentStep)
			r.With(write).Post("/workflow/resume", h.handleResume)
			r.With(write).Post("/workflow/advance", h.handleAdvance)
			r.With(write).Post("/workflow/back", h.handleGoBack)
			r.With(write).Post("/workflow/restart", h.handleRestart)

			r.With(read).Get("/sections", h.handleListSections)
			r.With(read).Get("/sections/{section}", h.handleGetSection)
			r.With(write).Put("/sections/{section}", h.handleSaveDraft)
			r.With(write, middleware.Idempotent(h.Idempotency)).Post("/sections/{section}/submit", h.handleSubmit)
			r.With(write).Post("/sections/{section}/signature", h.handleSign)
			r.With(write).Delete("/sections/{section}", h.handleClear)
		})
	})

	r.Route("/scoring", func(r chi.Router) {
		r.With(read).Get("/template", h.handleTemplate)
		r.With(read).Post("/preview", h.handlePreview)
	})
}

// actor resolves the caller. Routes are mounted behind RequirePermission, so
// the user is always present here.
func actor(r *http.Request) appraisal.Actor {
	user, _ := middleware.GetUser(r.Context())
	return appraisal.Actor{
		UserID:    user.UserID,
		Admin:     auth.HasPermission(user.RoleName, auth.PermAppraisalAdmin),
		RequestID: middleware.GetRequestID(r.Context()),
		IP:        requestctx.GetClientIP(r.Context()),
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 20, 100)
	items, total, err := h.Service.List(r.Context(), actor(r), page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, err, "appraisal_list_failed", requestID)
		return
	}
	if items == nil {
		items = []appraisal.Appraisal{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, page.List(items, total), requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		AppraiseeID string `json:"appraiseeId"`
		AppraiserID string `json:"appraiserId"`
		PeriodStart string `json:"periodStart"`
		PeriodEnd   string `json:"periodEnd"`
	}
	if !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}

	in := appraisal.NewAppraisal{AppraiseeID: payload.AppraiseeID, AppraiserID: payload.AppraiserID}
	var err error
	if in.PeriodStart, err = shared.ParseDate(payload.PeriodStart); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "periodStart must be YYYY-MM-DD", requestID)
		return
	}
	if in.PeriodEnd, err = shared.ParseDate(payload.PeriodEnd); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "periodEnd must be YYYY-MM-DD", requestID)
		return
	}

	created, err := h.Service.Create(r.Context(), actor(r), in)
	if err != nil {
		shared.WriteError(w, err, "appraisal_create_failed", requestID)
		return
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	out, err := h.Service.Get(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "appraisal_get_failed", requestID)
		return
	}
	api.Success(w, out, requestID)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		Status string `json:"status"`
	}
	if !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}
	status, err := appraisal.ParseStatus(payload.Status)
	if err != nil {
		shared.WriteError(w, err, "appraisal_status_failed", requestID)
		return
	}
	updated, err := h.Service.UpdateStatus(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), status)
	if err != nil {
		shared.WriteError(w, err, "appraisal_status_failed", requestID)
		return
	}
	api.Success(w, updated, requestID)
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	result, err := h.Service.Score(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "score_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	current, err := h.Service.Get(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "audit_list_failed", requestID)
		return
	}
	if h.Audit == nil {
		api.Fail(w, http.StatusNotImplemented, "audit_disabled", "audit trail is not configured", requestID)
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	query := r.URL.Query()
	filter := audit.Filter{
		Action:    query.Get("action"),
		Section:   query.Get("section"),
		ActorUser: query.Get("actorUserId"),
	}
	includeDetails := query.Get("includeDetails") == "true"

	total, err := h.Audit.Count(r.Context(), current.ID, filter)
	if err != nil {
		shared.WriteError(w, err, "audit_list_failed", requestID)
		return
	}
	events, err := h.Audit.List(r.Context(), current.ID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, err, "audit_list_failed", requestID)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, page.List(events, total), requestID)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.Template(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var in appraisal.PreviewInput
	if !shared.DecodeJSON(w, r, &in, true, requestID) {
		return
	}
	result, err := h.Service.Preview(in)
	if err != nil {
		shared.WriteError(w, err, "preview_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}
