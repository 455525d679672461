// Package record defines the claimable record shapes the reconciliation core
// reads and conditionally mutates. Records are created by the surrounding
// application; only owner linkage and its advisory match metadata are written
// here.
package record

import (
	"time"

	id "reclink/pkg/domain"
)

// Kind tags the claimable record variants.
type Kind string

const (
	KindParticipant Kind = "participant"
	KindProject     Kind = "project"
)

// Claimable is the tagged union of participant profiles and project records.
// Skills and Interests are only populated for participants.
type Claimable struct {
	ID           id.RecordID
	Kind         Kind
	Name         string
	ContactEmail string
	ContactPhone string
	Location     string

	// OwnerID is nil while unclaimed and holds exactly one identity once
	// claimed. All transitions go through the conditional store updates.
	OwnerID *id.IdentityID

	// MatchConfidence is advisory metadata written by earlier matching
	// passes. It is cleared when the record is claimed.
	MatchConfidence *int

	Skills    []string
	Interests []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claimed reports whether the record is currently linked to an identity.
func (c *Claimable) Claimed() bool {
	return c.OwnerID != nil && !c.OwnerID.IsNil()
}

// SubmissionStatus tracks the lifecycle of anonymous submissions.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is ephemeral pending content created before authentication.
// Submissions are matched against identities but never claimed directly;
// the surrounding application promotes them to records.
type Submission struct {
	ID           id.SubmissionID
	Type         string
	Content      string
	ContactEmail string
	SubmittedBy  string
	Location     string
	Status       SubmissionStatus
	CreatedAt    time.Time
}
