package sections

import (
	"fmt"
	"strings"
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/domain/workflow"
)

const dateLayout = "2006-01-02"

// Payload is the section-specific body of a Record. The concrete type always
// matches Section().
type Payload interface {
	Section() workflow.Step
	Validate(issues *apperr.Collector)
}

// RoleMerger is implemented by payloads whose fields are split between the two
// parties. Merge keeps existing's fields that role does not own.
type RoleMerger interface {
	Merge(existing Payload, role workflow.Role) Payload
}

type AppraiseeDetails struct {
	Title           string `json:"title"`
	Surname         string `json:"surname"`
	FirstName       string `json:"firstName"`
	OtherNames      string `json:"otherNames,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Grade           string `json:"grade,omitempty"`
	Position        string `json:"position,omitempty"`
	Department      string `json:"department,omitempty"`
	AppointmentDate string `json:"appointmentDate,omitempty"`
}

type AppraiserDetails struct {
	Title      string `json:"title"`
	Surname    string `json:"surname"`
	FirstName  string `json:"firstName"`
	OtherNames string `json:"otherNames,omitempty"`
	Position   string `json:"position,omitempty"`
}

type TrainingRecord struct {
	Institution string `json:"institution"`
	Date        string `json:"date"`
	Programme   string `json:"programme"`
}

type PersonalInfo struct {
	Appraisee        AppraiseeDetails `json:"appraisee"`
	Appraiser        AppraiserDetails `json:"appraiser"`
	TrainingReceived []TrainingRecord `json:"trainingReceived"`
}

func (PersonalInfo) Section() workflow.Step { return workflow.StepPersonalInfo }

func (p PersonalInfo) Validate(issues *apperr.Collector) {
	if g := strings.ToLower(strings.TrimSpace(p.Appraisee.Gender)); g != "" && g != "male" && g != "female" {
		issues.Add("appraisee.gender", "must be male or female")
	}
	checkDate("appraisee.appointmentDate", p.Appraisee.AppointmentDate, issues)
	for i, record := range p.TrainingReceived {
		prefix := fmt.Sprintf("trainingReceived[%d]", i)
		if strings.TrimSpace(record.Programme) == "" {
			issues.Add(prefix+".programme", "is required")
		}
		checkDate(prefix+".date", record.Date, issues)
	}
}

type KeyResultArea struct {
	Area              string `json:"area"`
	Targets           string `json:"targets"`
	ResourcesRequired string `json:"resourcesRequired,omitempty"`
}

type PerformancePlanning struct {
	KeyResultAreas []KeyResultArea `json:"keyResultAreas"`
}

func (PerformancePlanning) Section() workflow.Step { return workflow.StepPerformancePlanning }

func (p PerformancePlanning) Validate(issues *apperr.Collector) {
	for i, kra := range p.KeyResultAreas {
		if strings.TrimSpace(kra.Area) == "" {
			issues.Add(fmt.Sprintf("keyResultAreas[%d].area", i), "is required")
		}
	}
}

type ProgressRow struct {
	Item     string `json:"item"`
	Progress string `json:"progress"`
	Remarks  string `json:"remarks,omitempty"`
}

type MidYearReview struct {
	Targets      []ProgressRow `json:"targets"`
	Competencies []ProgressRow `json:"competencies"`
}

func (MidYearReview) Section() workflow.Step { return workflow.StepMidYearReview }

func (p MidYearReview) Validate(issues *apperr.Collector) {
	checkRows("targets", p.Targets, issues)
	checkRows("competencies", p.Competencies, issues)
}

// EndYearReview holds the target assessment; Summary is derived on submit and
// its FinalScore is M.
type EndYearReview struct {
	Targets []scoring.Target      `json:"targets"`
	Summary scoring.TargetSummary `json:"summary"`
}

func (EndYearReview) Section() workflow.Step { return workflow.StepEndYearReview }

func (p EndYearReview) Validate(issues *apperr.Collector) {
	scoring.ValidateTargets("targets", p.Targets, issues)
}

// AnnualAppraisal carries no Score until an End-Year Review exists to supply M.
type AnnualAppraisal struct {
	Core    []scoring.CompetencyCategory `json:"core"`
	NonCore []scoring.CompetencyCategory `json:"nonCore"`
	Score   *scoring.AppraisalScore      `json:"score,omitempty"`
}

func (AnnualAppraisal) Section() workflow.Step { return workflow.StepAnnualAppraisal }

func (p AnnualAppraisal) Validate(issues *apperr.Collector) {
	scoring.ValidateCategories("core", p.Core, issues)
	scoring.ValidateCategories("nonCore", p.NonCore, issues)
}

type Promotion string

const (
	PromotionOutstanding Promotion = "outstanding"
	PromotionSuitable    Promotion = "suitable"
	PromotionLikelyReady Promotion = "likely-ready"
	PromotionNotReady    Promotion = "not-ready"
	PromotionUnlikely    Promotion = "unlikely"
)

var promotions = []Promotion{PromotionOutstanding, PromotionSuitable, PromotionLikelyReady, PromotionNotReady, PromotionUnlikely}

type Agreement string

const (
	AgreementAgree    Agreement = "agree"
	AgreementDisagree Agreement = "disagree"
)

type FinalSections struct {
	AppraiserComments string    `json:"appraiserComments,omitempty"`
	TrainingNeeds     string    `json:"trainingNeeds,omitempty"`
	Promotion         Promotion `json:"promotion,omitempty"`
	AppraiseeComments string    `json:"appraiseeComments,omitempty"`
	Agreement         Agreement `json:"agreement,omitempty"`
}

func (FinalSections) Section() workflow.Step { return workflow.StepFinalSections }

func (p FinalSections) Validate(issues *apperr.Collector) {
	if p.Promotion != "" {
		known := false
		for _, candidate := range promotions {
			if p.Promotion == candidate {
				known = true
				break
			}
		}
		if !known {
			issues.Add("promotion", "must be one of outstanding, suitable, likely-ready, not-ready, unlikely")
		}
	}
	if p.Agreement != "" && p.Agreement != AgreementAgree && p.Agreement != AgreementDisagree {
		issues.Add("agreement", "must be agree or disagree")
	}
}

// Merge lets each party write only its own fields.
func (p FinalSections) Merge(existing Payload, role workflow.Role) Payload {
	prior, _ := existing.(FinalSections)
	if role == workflow.RoleAppraiser {
		p.AppraiseeComments = prior.AppraiseeComments
		p.Agreement = prior.Agreement
		return p
	}
	p.AppraiserComments = prior.AppraiserComments
	p.TrainingNeeds = prior.TrainingNeeds
	p.Promotion = prior.Promotion
	return p
}

// Agreed reports whether the appraisee has recorded a decision.
func (p FinalSections) Agreed() bool {
	return p.Agreement != ""
}

func checkDate(field, raw string, issues *apperr.Collector) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if _, err := time.Parse(dateLayout, raw); err != nil {
		issues.Add(field, "must be a valid date in YYYY-MM-DD format")
	}
}

func checkRows(field string, rows []ProgressRow, issues *apperr.Collector) {
	for i, row := range rows {
		if strings.TrimSpace(row.Item) == "" {
			issues.Add(fmt.Sprintf("%s[%d].item", field, i), "is required")
		}
	}
}
