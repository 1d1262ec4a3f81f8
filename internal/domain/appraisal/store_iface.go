package appraisal

import (
	"context"
	"time"

	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/workflow"
)

type StoreAPI interface {
	workflow.CursorStore

	Create(ctx context.Context, in NewAppraisal) (Appraisal, error)
	Get(ctx context.Context, id string) (Appraisal, error)
	// ListForUser returns appraisals where userID is either party; an empty
	// userID lists everything.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]Appraisal, int, error)
	// AdvanceStatus moves to `to` only when the stored status is one of from.
	// ok is false when the row was not in an allowed status.
	AdvanceStatus(ctx context.Context, id string, to Status, from []Status) (Appraisal, bool, error)

	LockState(ctx context.Context, id string, step workflow.Step) (lock.State, error)
	LockStates(ctx context.Context, id string) (map[workflow.Step]lock.State, error)
	// MarkLocked records the first lock time; an existing lock is returned
	// unchanged.
	MarkLocked(ctx context.Context, id string, step workflow.Step, at time.Time) (lock.State, error)
	ClearLock(ctx context.Context, id string, step workflow.Step) error
}
