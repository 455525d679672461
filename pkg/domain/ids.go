package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed UUID identifiers. Each entity gets its own type so an IdentityID can
// never be passed where a RecordID is expected.

// IdentityID identifies an authenticated account supplied by the auth provider.
type IdentityID uuid.UUID

// RecordID identifies a claimable record (participant or project).
type RecordID uuid.UUID

// SubmissionID identifies a pending anonymous submission.
type SubmissionID uuid.UUID

// EntryID identifies an audit log entry.
type EntryID uuid.UUID

// ParseIdentityID validates and returns an IdentityID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseID("identity id", s)
	return IdentityID(u), err
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseID("record id", s)
	return RecordID(u), err
}

// ParseSubmissionID validates and returns a SubmissionID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseID("submission id", s)
	return SubmissionID(u), err
}

func parseID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%s must not be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must not be the nil UUID", kind)
	}
	return u, nil
}

func (id IdentityID) String() string { return uuid.UUID(id).String() }
func (id IdentityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EntryID) String() string { return uuid.UUID(id).String() }
func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
