package appraisal

import (
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

type Appraisal struct {
	ID              string           `json:"id"`
	AppraiseeID     string           `json:"appraiseeId"`
	AppraiserID     string           `json:"appraiserId"`
	PeriodStart     time.Time        `json:"periodStart"`
	PeriodEnd       time.Time        `json:"periodEnd"`
	Status          Status           `json:"status"`
	AppraiseeCursor *workflow.Cursor `json:"appraiseeCursor,omitempty"`
	AppraiserCursor *workflow.Cursor `json:"appraiserCursor,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// RoleOf maps a user to the party they play in this appraisal.
func (a Appraisal) RoleOf(userID string) (workflow.Role, bool) {
	switch userID {
	case "":
		return "", false
	case a.AppraiseeID:
		return workflow.RoleAppraisee, true
	case a.AppraiserID:
		return workflow.RoleAppraiser, true
	}
	return "", false
}

func (a Appraisal) PartyID(role workflow.Role) string {
	if role == workflow.RoleAppraiser {
		return a.AppraiserID
	}
	return a.AppraiseeID
}

func (a Appraisal) SectionKey(step workflow.Step) sections.Key {
	return sections.Key{OwnerUserID: a.AppraiseeID, AppraisalID: a.ID, Section: step}
}

type NewAppraisal struct {
	AppraiseeID string    `json:"appraiseeId"`
	AppraiserID string    `json:"appraiserId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

func (n NewAppraisal) Validate() error {
	var issues apperr.Collector
	if n.AppraiseeID == "" {
		issues.Add("appraiseeId", "is required")
	}
	if n.AppraiserID == "" {
		issues.Add("appraiserId", "is required")
	}
	if n.AppraiseeID != "" && n.AppraiseeID == n.AppraiserID {
		issues.Add("appraiserId", ErrSamePerson.Error())
	}
	if n.PeriodStart.IsZero() {
		issues.Add("periodStart", "is required")
	}
	if n.PeriodEnd.IsZero() {
		issues.Add("periodEnd", "is required")
	}
	if !n.PeriodStart.IsZero() && !n.PeriodEnd.IsZero() && n.PeriodEnd.Before(n.PeriodStart) {
		issues.Add("periodEnd", "must be on or after periodStart")
	}
	return issues.Err()
}

// Actor is the authenticated caller. Admins (HR) may read every appraisal but
// only the two parties write sections.
type Actor struct {
	UserID    string
	Admin     bool
	RequestID string
	IP        string
}

// SectionView is a section record together with its lock.
type SectionView struct {
	Section workflow.Step    `json:"section"`
	Record  *sections.Record `json:"record,omitempty"`
	Lock    lock.State       `json:"lock"`
}

type SubmitResult struct {
	SectionView
	Next          workflow.Step `json:"next"`
	Status        Status        `json:"status"`
	PassedThrough bool          `json:"passedThrough,omitempty"`
}
