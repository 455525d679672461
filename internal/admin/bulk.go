package admin

import (
	"context"

	"reclink/internal/identity"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// BulkOp names the per-item operation in a bulk update.
type BulkOp string

const (
	BulkOpClaim   BulkOp = "claim"
	BulkOpUnclaim BulkOp = "unclaim"
)

// BulkItem is one record transition in a batch.
type BulkItem struct {
	Op       BulkOp
	RecordID id.RecordID
	// TargetID is the identity to claim for; ignored for unclaim items.
	TargetID id.IdentityID
	Notes    string
}

// BulkResult reports one item's outcome. Err is nil on success.
type BulkResult struct {
	RecordID id.RecordID
	Op       BulkOp
	Err      error
}

// BulkUpdate applies each item independently under the single-item contract:
// one item failing never aborts the rest, and every successful item carries
// its own audit entry.
func (s *Service) BulkUpdate(ctx context.Context, admin identity.Identity, items []BulkItem) []BulkResult {
	results := make([]BulkResult, 0, len(items))
	for _, item := range items {
		var err error
		switch item.Op {
		case BulkOpClaim:
			err = s.ForceClaim(ctx, admin, item.TargetID, item.RecordID, item.Notes)
		case BulkOpUnclaim:
			err = s.Unclaim(ctx, admin, item.RecordID, item.Notes)
		default:
			err = dErrors.New(dErrors.CodeBadRequest, "unknown bulk operation: "+string(item.Op))
		}
		results = append(results, BulkResult{RecordID: item.RecordID, Op: item.Op, Err: err})
	}
	return results
}
