package appraisal

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusCompleted Status = "completed"
)

var statusOrder = []Status{StatusDraft, StatusSubmitted, StatusReviewed, StatusCompleted}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if status.Rank() < 0 {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

// Rank is the position in the lifecycle, or -1 for an unknown status.
func (s Status) Rank() int {
	for i, candidate := range statusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Below lists the statuses that may move forward to s.
func (s Status) Below() []Status {
	rank := s.Rank()
	if rank <= 0 {
		return nil
	}
	out := make([]Status, rank)
	copy(out, statusOrder[:rank])
	return out
}

const (
	NotificationSectionSubmitted = "appraisal_section_submitted"
	NotificationSectionLocked    = "appraisal_section_locked"
	NotificationSectionSigned    = "appraisal_section_signed"
	NotificationStatusChanged    = "appraisal_status_changed"
	NotificationCreated          = "appraisal_created"
)

const (
	AuditCreated         = "appraisal.create"
	AuditStatusChanged   = "appraisal.status"
	AuditSectionDraft    = "section.draft"
	AuditSectionSubmit   = "section.submit"
	AuditSectionSign     = "section.sign"
	AuditSectionClear    = "section.clear"
	AuditSectionLocked   = "section.lock"
	AuditWorkflowRestart = "workflow.restart"
)

const (
	MetricSubmissions      = "section_submissions_total"
	MetricPassThrough      = "section_submissions_locked_total"
	MetricDraftsRejected   = "section_drafts_rejected_total"
	MetricLocks            = "section_locks_total"
	MetricStatusRegression = "status_regressions_ignored_total"
)
