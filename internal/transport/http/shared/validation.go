package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/transport/http/api"
)

func FailValidation(w http.ResponseWriter, requestID string, issues []apperr.Issue) {
	api.FailWithDetails(
		w,
		http.StatusBadRequest,
		"validation_error",
		"payload validation failed",
		map[string]any{"fields": issues},
		requestID,
	)
}

// DecodeJSON reads one JSON value into dst, rejecting unknown fields when
// strict is set. Bodies over the BodyLimit ceiling surface as 413.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool, requestID string) bool {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
	case errors.Is(err, io.EOF):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body required", requestID)
	default:
		FailValidation(w, requestID, []apperr.Issue{{Field: "body", Reason: err.Error()}})
	}
	return false
}
