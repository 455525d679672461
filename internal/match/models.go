// Package match implements the confidence scorer and candidate search that
// pair authenticated identities with unclaimed records.
package match

import (
	"time"

	"github.com/google/uuid"
)

// TargetKind tags what a candidate points at.
type TargetKind string

const (
	TargetParticipant TargetKind = "participant"
	TargetProject     TargetKind = "project"
	TargetSubmission  TargetKind = "submission"
)

// TargetRef locates the matched record or submission.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// Candidate is one scored match. Claimable is false for submissions, which
// are matched for display but promoted by the surrounding application rather
// than claimed directly.
type Candidate struct {
	Target          TargetRef `json:"target"`
	Confidence      int       `json:"confidence"`
	MatchedCriteria []string  `json:"matched_criteria"`
	Claimable       bool      `json:"claimable"`
}

// Result is one candidate search outcome: records and submissions, each
// already filtered and ordered. Both lists may be empty; a no-match search is
// not an error.
type Result struct {
	Records     []Candidate `json:"records"`
	Submissions []Candidate `json:"submissions"`
	FetchedAt   time.Time   `json:"fetched_at"`
}
