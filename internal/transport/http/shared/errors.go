package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/transport/http/api"
)

// WriteError maps domain errors onto the response envelope. Anything
// unrecognised is logged and reported as a 500 under fallbackCode.
func WriteError(w http.ResponseWriter, err error, fallbackCode, requestID string) {
	if v, ok := apperr.IsValidation(err); ok {
		FailValidation(w, requestID, v.Issues)
		return
	}
	if c, ok := apperr.IsConflict(err); ok {
		details := map[string]any{"reason": c.Err.Error()}
		if c.Current != nil {
			details["current"] = c.Current
		}
		api.FailWithDetails(w, http.StatusConflict, "conflict", c.Err.Error(), details, requestID)
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, apperr.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not a participant of this appraisal", requestID)
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		slog.Warn("upstream unavailable", "err", err, "requestId", requestID)
		w.Header().Set("Retry-After", "1")
		api.Fail(w, http.StatusServiceUnavailable, "upstream_unavailable", "a dependency is unavailable, retry shortly", requestID)
	default:
		slog.Error("request failed", "code", fallbackCode, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal error", requestID)
	}
}
