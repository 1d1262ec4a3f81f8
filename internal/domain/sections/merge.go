package sections

import "staffappraisal/internal/domain/workflow"

// Apply folds a write by role into the stored record. The other party's
// signature and, for split payloads, the other party's fields are kept from
// existing (or left empty when there is no existing record).
func Apply(existing Record, found bool, incoming Record, role workflow.Role) Record {
	out := incoming
	out.Signatures = Signatures{}
	prior := existing.Payload
	if found {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
		out.Signatures = existing.Signatures
	}
	if prior == nil {
		prior, _ = EmptyPayload(incoming.Section)
	}
	if merger, ok := incoming.Payload.(RoleMerger); ok && prior != nil {
		out.Payload = merger.Merge(prior, role)
	}
	if own := incoming.Signatures.For(role); own != nil {
		out.Signatures.Set(role, own)
	}
	return out
}
