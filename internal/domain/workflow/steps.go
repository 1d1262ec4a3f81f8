package workflow

import (
	"fmt"
	"strings"
)

// Step is one of the six fixed appraisal form sections, in fill order.
type Step string

const (
	StepPersonalInfo        Step = "personal-info"
	StepPerformancePlanning Step = "performance-planning"
	StepMidYearReview       Step = "mid-year-review"
	StepEndYearReview       Step = "end-year-review"
	StepAnnualAppraisal     Step = "annual-appraisal"
	StepFinalSections       Step = "final-sections"
)

var Steps = []Step{
	StepPersonalInfo,
	StepPerformancePlanning,
	StepMidYearReview,
	StepEndYearReview,
	StepAnnualAppraisal,
	StepFinalSections,
}

func First() Step {
	return Steps[0]
}

func Last() Step {
	return Steps[len(Steps)-1]
}

func ParseStep(raw string) (Step, error) {
	candidate := Step(strings.ToLower(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("unknown workflow step %q", raw)
	}
	return candidate, nil
}

// Index returns the position in the fill order, or -1.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s Step) Valid() bool {
	return s.Index() >= 0
}

func (s Step) Terminal() bool {
	return s == Last()
}

func (s Step) Next() (Step, bool) {
	idx := s.Index()
	if idx < 0 || idx == len(Steps)-1 {
		return "", false
	}
	return Steps[idx+1], true
}

func (s Step) Prev() (Step, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return Steps[idx-1], true
}

func (s Step) Before(other Step) bool {
	return s.Index() < other.Index()
}

// Role is the party driving a cursor through the steps.
type Role string

const (
	RoleAppraisee Role = "appraisee"
	RoleAppraiser Role = "appraiser"
)

var Roles = []Role{RoleAppraisee, RoleAppraiser}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

func (r Role) Valid() bool {
	return r == RoleAppraisee || r == RoleAppraiser
}

func (r Role) Counterpart() Role {
	if r == RoleAppraisee {
		return RoleAppraiser
	}
	return RoleAppraisee
}
