package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports malformed input before anything is persisted.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Collector accumulates issues; Err returns nil when nothing was added.
type Collector struct {
	issues []Issue
}

func (c *Collector) Add(field, reason string) {
	c.issues = append(c.issues, Issue{Field: field, Reason: reason})
}

func (c *Collector) Addf(field, format string, args ...any) {
	c.Add(field, fmt.Sprintf(format, args...))
}

func (c *Collector) Err() error {
	if len(c.issues) == 0 {
		return nil
	}
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &ValidationError{Issues: out}
}

func Invalid(field, reason string) error {
	return &ValidationError{Issues: []Issue{{Field: field, Reason: reason}}}
}

// ConflictError carries the current authoritative state so callers can show it
// instead of discarding the attempted change.
type ConflictError struct {
	Err     error
	Current any
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func Conflict(err error, current any) error {
	return &ConflictError{Err: err, Current: current}
}

func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
}

func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

func IsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
