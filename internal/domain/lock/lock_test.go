package lock

import (
	"testing"
	"time"

	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

func signed(appraisee, appraiser bool) sections.Signatures {
	var sigs sections.Signatures
	if appraisee {
		sigs.Appraisee = &sections.Signature{URL: "https://cdn/appraisee.png"}
	}
	if appraiser {
		sigs.Appraiser = &sections.Signature{URL: "https://cdn/appraiser.png"}
	}
	return sigs
}

func TestSignatureGatedSections(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	for _, step := range workflow.Steps[1:] {
		half := Snapshot{step: signed(true, false)}
		if state, changed := Evaluate(step, half, State{}, now); state.Locked || changed {
			t.Fatalf("%s locked with one signature", step)
		}
		both := Snapshot{step: signed(true, true)}
		state, changed := Evaluate(step, both, State{}, now)
		if !state.Locked || !changed || !state.LockedAt.Equal(now) {
			t.Fatalf("%s expected lock at %v, got %+v", step, now, state)
		}
	}
}

func TestPersonalInfoFollowsPerformancePlanning(t *testing.T) {
	now := time.Now()
	snapshot := Snapshot{workflow.StepPersonalInfo: signed(true, true)}
	if Holds(workflow.StepPersonalInfo, snapshot) {
		t.Fatal("personal info must not lock on its own signatures")
	}
	snapshot[workflow.StepPerformancePlanning] = signed(true, true)
	if state, _ := Evaluate(workflow.StepPersonalInfo, snapshot, State{}, now); !state.Locked {
		t.Fatal("expected personal info to lock once planning is signed")
	}
}

func TestLockIsSticky(t *testing.T) {
	first := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	step := workflow.StepEndYearReview
	state, _ := Evaluate(step, Snapshot{step: signed(true, true)}, State{}, first)

	later := first.Add(48 * time.Hour)
	again, changed := Evaluate(step, Snapshot{step: signed(false, false)}, state, later)
	if !again.Locked || changed {
		t.Fatalf("expected lock to persist, got %+v changed=%v", again, changed)
	}
	if !again.LockedAt.Equal(first) {
		t.Fatalf("lockedAt moved from %v to %v", first, again.LockedAt)
	}
}

func TestAffected(t *testing.T) {
	got := Affected(workflow.StepPerformancePlanning)
	if len(got) != 2 || got[0] != workflow.StepPersonalInfo || got[1] != workflow.StepPerformancePlanning {
		t.Fatalf("unexpected affected sections: %v", got)
	}
	if got := Affected(workflow.StepPersonalInfo); len(got) != 0 {
		t.Fatalf("personal info gates nothing, got %v", got)
	}
}

func TestSnapshotOf(t *testing.T) {
	records := []sections.Record{
		{Section: workflow.StepMidYearReview, Signatures: signed(true, true)},
		{Section: workflow.StepEndYearReview, Signatures: signed(false, true)},
	}
	snapshot := SnapshotOf(records)
	if !Holds(workflow.StepMidYearReview, snapshot) || Holds(workflow.StepEndYearReview, snapshot) {
		t.Fatalf("unexpected snapshot evaluation: %+v", snapshot)
	}
}

func TestOutlives(t *testing.T) {
	snapshot := Snapshot{workflow.StepPerformancePlanning: signed(true, true)}
	if !Outlives(workflow.StepPersonalInfo, snapshot) {
		t.Fatal("personal info lock should outlive its own record while planning is signed")
	}
	if Outlives(workflow.StepPerformancePlanning, snapshot) {
		t.Fatal("a section's own signatures go away with its record")
	}
	snapshot[workflow.StepPerformancePlanning] = signed(true, false)
	if Outlives(workflow.StepPersonalInfo, snapshot) {
		t.Fatal("half-signed planning holds no lock")
	}
}
