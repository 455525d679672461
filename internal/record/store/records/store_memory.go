package records

import (
	"context"
	"sync"
	"time"

	"reclink/internal/record"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
)

// InMemory is the mutex-map twin of the PostgreSQL record store. The
// conditional owner updates hold the write lock for the whole check-then-set,
// which gives the same exactly-one-winner guarantee the SQL store gets from
// its conditional UPDATE.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*record.Claimable
}

func New() *InMemory {
	return &InMemory{records: make(map[id.RecordID]*record.Claimable)}
}

func (s *InMemory) Save(_ context.Context, rec *record.Claimable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := clone(rec)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	s.records[cp.ID] = cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*record.Claimable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemory) ListUnclaimed(_ context.Context) ([]*record.Claimable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Claimable
	for _, rec := range s.records {
		if !rec.Claimed() {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

// ClaimOwner links the record to the identity iff it is currently unclaimed,
// and clears stale match metadata in the same step. Losing the race returns
// sentinel.ErrConflict.
func (s *InMemory) ClaimOwner(_ context.Context, recordID id.RecordID, identityID id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Claimed() {
		return sentinel.ErrConflict
	}
	owner := identityID
	rec.OwnerID = &owner
	rec.MatchConfidence = nil
	rec.UpdatedAt = time.Now()
	return nil
}

// ReleaseOwner clears the owner link iff the record is currently held by the
// expected identity. The expectation is the optimistic-concurrency check.
func (s *InMemory) ReleaseOwner(_ context.Context, recordID id.RecordID, expected id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.OwnerID == nil || *rec.OwnerID != expected {
		return sentinel.ErrConflict
	}
	rec.OwnerID = nil
	rec.MatchConfidence = nil
	rec.UpdatedAt = time.Now()
	return nil
}

// ReassignOwner moves ownership from one identity to another in a single
// conditional step. Used by admin force-claims onto already-claimed records.
func (s *InMemory) ReassignOwner(_ context.Context, recordID id.RecordID, from, to id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.OwnerID == nil || *rec.OwnerID != from {
		return sentinel.ErrConflict
	}
	owner := to
	rec.OwnerID = &owner
	rec.MatchConfidence = nil
	rec.UpdatedAt = time.Now()
	return nil
}

func clone(rec *record.Claimable) *record.Claimable {
	cp := *rec
	if rec.OwnerID != nil {
		owner := *rec.OwnerID
		cp.OwnerID = &owner
	}
	if rec.MatchConfidence != nil {
		mc := *rec.MatchConfidence
		cp.MatchConfidence = &mc
	}
	cp.Skills = append([]string(nil), rec.Skills...)
	cp.Interests = append([]string(nil), rec.Interests...)
	return &cp
}
