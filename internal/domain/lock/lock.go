// Package lock decides when a section becomes read-only. A section locks once
// its gate section carries both signatures, and stays locked until its record
// is cleared.
package lock

import (
	"time"

	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

type State struct {
	Locked   bool       `json:"locked"`
	LockedAt *time.Time `json:"lockedAt,omitempty"`
}

func Locked(at time.Time) State {
	return State{Locked: true, LockedAt: &at}
}

// Snapshot holds the current signatures of an appraisal's sections.
type Snapshot map[workflow.Step]sections.Signatures

func SnapshotOf(records []sections.Record) Snapshot {
	out := make(Snapshot, len(records))
	for _, rec := range records {
		out[rec.Section] = rec.Signatures
	}
	return out
}

// Gate returns the section whose signatures lock step. Personal information
// has no signature block of its own and follows performance planning.
func Gate(step workflow.Step) workflow.Step {
	if step == workflow.StepPersonalInfo {
		return workflow.StepPerformancePlanning
	}
	return step
}

// Affected lists the sections whose lock may change when step's signatures
// change.
func Affected(step workflow.Step) []workflow.Step {
	out := []workflow.Step{}
	for _, candidate := range workflow.Steps {
		if Gate(candidate) == step {
			out = append(out, candidate)
		}
	}
	return out
}

// Holds is the lock predicate, evaluated without history.
func Holds(step workflow.Step, snapshot Snapshot) bool {
	return snapshot[Gate(step)].Complete()
}

// Outlives reports whether step's lock comes from another section's
// signatures that are still complete, so clearing step's record cannot
// release it.
func Outlives(step workflow.Step, snapshot Snapshot) bool {
	return Gate(step) != step && Holds(step, snapshot)
}

// Evaluate applies the predicate on top of the prior state. Once locked, a
// section stays locked with its original timestamp; changed reports whether a
// new lock must be persisted.
func Evaluate(step workflow.Step, snapshot Snapshot, prior State, now time.Time) (State, bool) {
	if prior.Locked {
		return prior, false
	}
	if Holds(step, snapshot) {
		return Locked(now), true
	}
	return State{}, false
}
