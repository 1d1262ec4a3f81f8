package sections

import (
	"context"

	"staffappraisal/internal/domain/workflow"
)

type StoreAPI interface {
	// Upsert writes rec under its key. Only role's signature is applied and,
	// for RoleMerger payloads, only role's fields.
	Upsert(ctx context.Context, rec Record, role workflow.Role) (Record, error)
	LatestByOwner(ctx context.Context, key Key) (Record, bool, error)
	ListByAppraisal(ctx context.Context, appraisalID string) ([]Record, error)
	Sign(ctx context.Context, key Key, role workflow.Role, sig Signature) (Record, error)
	Delete(ctx context.Context, key Key) (bool, error)
}
