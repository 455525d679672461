package audit

import (
	"time"

	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// Method records how ownership was established.
type Method string

const (
	// MethodEmailMatch covers self-service claims, whether they qualified via
	// an exact email match or via the confidence threshold.
	MethodEmailMatch Method = "email_match"
	// MethodAdminManual covers admin-mediated claims that bypass confidence
	// gating entirely.
	MethodAdminManual Method = "admin_manual"
)

// Action distinguishes ownership transitions. Claims and unclaims share the
// same entry shape.
type Action string

const (
	ActionClaimed   Action = "claimed"
	ActionUnclaimed Action = "unclaimed"
)

// Entry is one immutable row in the claim history. Entries are append-only:
// no update or delete exists in any store implementation.
type Entry struct {
	ID            id.EntryID
	RecordID      id.RecordID
	Action        Action
	ClaimedBy     id.IdentityID
	Method        Method
	AdminAssisted bool
	AdminID       *id.IdentityID
	ClaimedAt     time.Time
	Notes         string
}

// Validate enforces entry invariants before persistence.
func (e *Entry) Validate() error {
	if e.RecordID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires a record id")
	}
	if e.ClaimedBy.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires the identity it concerns")
	}
	switch e.Action {
	case ActionClaimed, ActionUnclaimed:
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown audit action: "+string(e.Action))
	}
	switch e.Method {
	case MethodEmailMatch:
		if e.AdminAssisted {
			return dErrors.New(dErrors.CodeValidation, "email_match entries must not be admin assisted")
		}
	case MethodAdminManual:
		if e.AdminID == nil || e.AdminID.IsNil() {
			return dErrors.New(dErrors.CodeAdminAttributionMissing, "admin_manual entries require an admin identity")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown audit method: "+string(e.Method))
	}
	return nil
}
