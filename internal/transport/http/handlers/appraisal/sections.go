package appraisalhandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
	"staffappraisal/internal/platform/signature"
	"staffappraisal/internal/transport/http/api"
	"staffappraisal/internal/transport/http/middleware"
	"staffappraisal/internal/transport/http/shared"
)

const (
	formPayload   = "payload"
	formSignature = "signature"
	formDate      = "date"
)

type signatureInput struct {
	URL  string `json:"url"`
	Date string `json:"date"`
}

type sectionRequest struct {
	Payload   json.RawMessage `json:"payload"`
	Signature *signatureInput `json:"signature,omitempty"`
}

func sectionParam(r *http.Request) (workflow.Step, error) {
	step, err := workflow.ParseStep(chi.URLParam(r, "section"))
	if err != nil {
		return "", apperr.Invalid("section", err.Error())
	}
	return step, nil
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	views, err := h.Service.Sections(r.Context(), actor(r), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.WriteError(w, err, "section_list_failed", requestID)
		return
	}
	api.Success(w, views, requestID)
}

func (h *Handler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	step, err := sectionParam(r)
	if err != nil {
		shared.WriteError(w, err, "section_get_failed", requestID)
		return
	}
	view, err := h.Service.Section(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), step)
	if err != nil {
		shared.WriteError(w, err, "section_get_failed", requestID)
		return
	}
	api.Success(w, view, requestID)
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	step, err := sectionParam(r)
	if err != nil {
		shared.WriteError(w, err, "section_save_failed", requestID)
		return
	}
	var req sectionRequest
	if !shared.DecodeJSON(w, r, &req, true, requestID) {
		return
	}
	payload, err := sections.DecodePayload(step, req.Payload)
	if err != nil {
		shared.WriteError(w, err, "section_save_failed", requestID)
		return
	}
	view, err := h.Service.SaveDraft(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), step, payload)
	if err != nil {
		shared.WriteError(w, err, "section_save_failed", requestID)
		return
	}
	api.Success(w, view, requestID)
}

// handleSubmit accepts JSON ({payload, signature}) or multipart with a JSON
// "payload" field and an optional "signature" image.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	appraisalID := chi.URLParam(r, "appraisalID")
	step, err := sectionParam(r)
	if err != nil {
		shared.WriteError(w, err, "section_submit_failed", requestID)
		return
	}

	var (
		raw json.RawMessage
		sig *sections.Signature
	)
	if isMultipart(r) {
		raw, sig, err = h.readMultipart(r, appraisalID, step)
		if err != nil {
			shared.WriteError(w, err, "section_submit_failed", requestID)
			return
		}
	} else {
		var req sectionRequest
		if !shared.DecodeJSON(w, r, &req, true, requestID) {
			return
		}
		raw = req.Payload
		if req.Signature != nil {
			parsed, err := req.Signature.parse()
			if err != nil {
				shared.WriteError(w, err, "section_submit_failed", requestID)
				return
			}
			sig = &parsed
		}
	}

	payload, err := sections.DecodePayload(step, raw)
	if err != nil {
		shared.WriteError(w, err, "section_submit_failed", requestID)
		return
	}
	result, err := h.Service.SubmitSection(r.Context(), actor(r), appraisalID, step, payload, sig)
	if err != nil {
		shared.WriteError(w, err, "section_submit_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	appraisalID := chi.URLParam(r, "appraisalID")
	step, err := sectionParam(r)
	if err != nil {
		shared.WriteError(w, err, "section_sign_failed", requestID)
		return
	}

	var sig sections.Signature
	if isMultipart(r) {
		_, uploaded, err := h.readMultipart(r, appraisalID, step)
		if err != nil {
			shared.WriteError(w, err, "section_sign_failed", requestID)
			return
		}
		if uploaded == nil {
			shared.WriteError(w, apperr.Invalid(formSignature, "image file is required"), "section_sign_failed", requestID)
			return
		}
		sig = *uploaded
	} else {
		var in signatureInput
		if !shared.DecodeJSON(w, r, &in, true, requestID) {
			return
		}
		if sig, err = in.parse(); err != nil {
			shared.WriteError(w, err, "section_sign_failed", requestID)
			return
		}
	}

	view, err := h.Service.Sign(r.Context(), actor(r), appraisalID, step, sig)
	if err != nil {
		shared.WriteError(w, err, "section_sign_failed", requestID)
		return
	}
	api.Success(w, view, requestID)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	step, err := sectionParam(r)
	if err != nil {
		shared.WriteError(w, err, "section_clear_failed", requestID)
		return
	}
	if err := h.Service.ClearSection(r.Context(), actor(r), chi.URLParam(r, "appraisalID"), step); err != nil {
		shared.WriteError(w, err, "section_clear_failed", requestID)
		return
	}
	api.Success(w, map[string]string{"status": "cleared"}, requestID)
}

func (in signatureInput) parse() (sections.Signature, error) {
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return sections.Signature{}, apperr.Invalid("signature.url", "is required")
	}
	date, err := shared.ParseDate(in.Date)
	if err != nil {
		return sections.Signature{}, apperr.Invalid("signature.date", "must be a valid date in YYYY-MM-DD format")
	}
	return sections.Signature{URL: url, Date: date}, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// readMultipart returns the raw payload field and, when an image was attached,
// the signature pointing at the stored copy.
func (h *Handler) readMultipart(r *http.Request, appraisalID string, step workflow.Step) (json.RawMessage, *sections.Signature, error) {
	if err := r.ParseMultipartForm(h.SignatureMaxBytes + 64<<10); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperr.Invalid(formSignature, signature.ErrTooLarge.Error())
		}
		return nil, nil, apperr.Invalid("body", "invalid multipart form")
	}
	raw := json.RawMessage(r.FormValue(formPayload))

	file, _, err := r.FormFile(formSignature)
	if errors.Is(err, http.ErrMissingFile) {
		return raw, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Invalid(formSignature, "could not read uploaded file")
	}
	defer file.Close()

	date, err := shared.ParseDate(r.FormValue(formDate))
	if err != nil {
		return nil, nil, apperr.Invalid(formDate, "must be a valid date in YYYY-MM-DD format")
	}
	url, err := h.storeSignature(r, file, appraisalID, step)
	if err != nil {
		return nil, nil, err
	}
	return raw, &sections.Signature{URL: url, Date: date}, nil
}

func (h *Handler) storeSignature(r *http.Request, file io.Reader, appraisalID string, step workflow.Step) (string, error) {
	if h.Signatures == nil {
		return "", apperr.Invalid(formSignature, "signature uploads are not enabled")
	}
	user, _ := middleware.GetUser(r.Context())
	url, err := signature.Upload(r.Context(), h.Signatures, file, h.SignatureMaxBytes, appraisalID, string(step), user.UserID)
	switch {
	case errors.Is(err, signature.ErrUnsupportedImage), errors.Is(err, signature.ErrTooLarge), errors.Is(err, signature.ErrEmpty):
		return "", apperr.Invalid(formSignature, err.Error())
	case err != nil:
		return "", apperr.Unavailable("store signature", err)
	}
	return url, nil
}
