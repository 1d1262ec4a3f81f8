package sections

import (
	"encoding/json"
	"testing"
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/domain/workflow"
)

func TestDecodePayloadPicksVariant(t *testing.T) {
	payload, err := DecodePayload(workflow.StepEndYearReview, json.RawMessage(`{"targets":[{"target":"Close books","weightOfTarget":5,"score":3}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	review, ok := payload.(EndYearReview)
	if !ok {
		t.Fatalf("expected EndYearReview, got %T", payload)
	}
	if len(review.Targets) != 1 || review.Targets[0].Score != 3 {
		t.Fatalf("unexpected targets: %+v", review.Targets)
	}
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	_, err := DecodePayload(workflow.StepFinalSections, json.RawMessage(`{"promotion":"suitable","salary":100}`))
	if _, ok := apperr.IsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = DecodePayload(workflow.Step("appendix"), nil)
	verr, ok := apperr.IsValidation(err)
	if !ok || verr.Issues[0].Field != "section" {
		t.Fatalf("expected section validation error, got %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	payload, err := DecodePayload(workflow.StepMidYearReview, json.RawMessage(" null "))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload.(MidYearReview); !ok {
		t.Fatalf("expected MidYearReview, got %T", payload)
	}
}

func TestRecordJSONKeepsPayloadVariant(t *testing.T) {
	signedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := Record{
		ID:          "rec-1",
		OwnerUserID: "user-1",
		AppraisalID: "appr-1",
		Section:     workflow.StepAnnualAppraisal,
		Payload: AnnualAppraisal{
			Core:  []scoring.CompetencyCategory{{ID: "communication", Items: []scoring.CompetencyItem{{ID: "oral", Weight: 0.3, Score: 4}}}},
			Score: &scoring.AppraisalScore{OverallTotal: 9.3},
		},
		Signatures: Signatures{Appraisee: &Signature{URL: "https://cdn/sig.png", Date: signedAt}},
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Record
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	annual, ok := back.Payload.(AnnualAppraisal)
	if !ok {
		t.Fatalf("expected AnnualAppraisal, got %T", back.Payload)
	}
	if annual.Score == nil || annual.Score.OverallTotal != 9.3 || annual.Core[0].Items[0].Score != 4 {
		t.Fatalf("payload lost data: %+v", annual)
	}
	if back.Signatures.Appraiser != nil || back.Signatures.Appraisee == nil || !back.Signatures.Appraisee.Date.Equal(signedAt) {
		t.Fatalf("signatures lost: %+v", back.Signatures)
	}
}

func TestFinalSectionsMergeKeepsOtherPartyFields(t *testing.T) {
	existing := FinalSections{
		AppraiserComments: "Solid year",
		Promotion:         PromotionSuitable,
		Agreement:         AgreementAgree,
		AppraiseeComments: "Thanks",
	}
	fromAppraisee := FinalSections{AppraiseeComments: "Updated", Agreement: AgreementDisagree, Promotion: PromotionOutstanding}
	merged := fromAppraisee.Merge(existing, workflow.RoleAppraisee).(FinalSections)
	if merged.Promotion != PromotionSuitable || merged.AppraiserComments != "Solid year" {
		t.Fatalf("appraisee overwrote appraiser fields: %+v", merged)
	}
	if merged.Agreement != AgreementDisagree || merged.AppraiseeComments != "Updated" {
		t.Fatalf("appraisee fields not applied: %+v", merged)
	}

	fromAppraiser := FinalSections{TrainingNeeds: "Leadership course", Agreement: AgreementDisagree}
	merged = fromAppraiser.Merge(existing, workflow.RoleAppraiser).(FinalSections)
	if merged.Agreement != AgreementAgree || merged.TrainingNeeds != "Leadership course" {
		t.Fatalf("unexpected appraiser merge: %+v", merged)
	}
}

func TestApplyPreservesCounterpartSignature(t *testing.T) {
	appraiseeSig := &Signature{URL: "https://cdn/appraisee.png"}
	existing := Record{
		ID:         "rec-1",
		Section:    workflow.StepPerformancePlanning,
		Payload:    PerformancePlanning{},
		Signatures: Signatures{Appraisee: appraiseeSig},
		CreatedAt:  time.Unix(100, 0),
	}
	incoming := Record{
		Section: workflow.StepPerformancePlanning,
		Payload: PerformancePlanning{KeyResultAreas: []KeyResultArea{{Area: "Finance"}}},
		Signatures: Signatures{
			Appraisee: &Signature{URL: "https://cdn/forged.png"},
			Appraiser: &Signature{URL: "https://cdn/appraiser.png"},
		},
	}
	out := Apply(existing, true, incoming, workflow.RoleAppraiser)
	if out.ID != "rec-1" || !out.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("identity not kept: %+v", out)
	}
	if out.Signatures.Appraisee != appraiseeSig {
		t.Fatalf("appraisee signature replaced: %+v", out.Signatures.Appraisee)
	}
	if out.Signatures.Appraiser == nil || out.Signatures.Appraiser.URL != "https://cdn/appraiser.png" {
		t.Fatalf("appraiser signature missing: %+v", out.Signatures)
	}
	if !out.Signatures.Complete() {
		t.Fatal("expected both signatures present")
	}
}

func TestApplyStripsCounterpartFieldsOnFirstWrite(t *testing.T) {
	incoming := Record{
		Section: workflow.StepFinalSections,
		Payload: FinalSections{AppraiseeComments: "Agreed", Agreement: AgreementAgree, Promotion: PromotionOutstanding},
	}
	out := Apply(Record{}, false, incoming, workflow.RoleAppraisee)
	final := out.Payload.(FinalSections)
	if final.Promotion != "" {
		t.Fatalf("appraisee should not set promotion, got %q", final.Promotion)
	}
	if final.Agreement != AgreementAgree {
		t.Fatalf("expected agreement kept, got %q", final.Agreement)
	}
}

func TestValidatePayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		field   string
	}{
		{"bad promotion", FinalSections{Promotion: "maybe"}, "promotion"},
		{"bad agreement", FinalSections{Agreement: "perhaps"}, "agreement"},
		{"bad date", PersonalInfo{Appraisee: AppraiseeDetails{AppointmentDate: "01/02/2020"}}, "appraisee.appointmentDate"},
		{"missing area", PerformancePlanning{KeyResultAreas: []KeyResultArea{{Targets: "x"}}}, "keyResultAreas[0].area"},
		{"score range", EndYearReview{Targets: []scoring.Target{{WeightOfTarget: 1, Score: 9}}}, "targets[0].score"},
	}
	for _, tc := range cases {
		var issues apperr.Collector
		tc.payload.Validate(&issues)
		verr, ok := apperr.IsValidation(issues.Err())
		if !ok {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if verr.Issues[0].Field != tc.field {
			t.Fatalf("%s: expected field %s, got %+v", tc.name, tc.field, verr.Issues)
		}
	}
}
