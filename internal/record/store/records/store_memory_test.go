package records

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/record"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Record Store Test Suite
// =============================================================================
// Justification for unit tests: the memory store must mirror the SQL store's
// conditional-update semantics exactly, because services rely on the store
// for race decisions regardless of backend.

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
}

func (s *MemoryStoreSuite) seed(rec *record.Claimable) *record.Claimable {
	if rec.ID.IsNil() {
		rec.ID = id.RecordID(uuid.New())
	}
	s.Require().NoError(s.store.Save(context.Background(), rec))
	return rec
}

func (s *MemoryStoreSuite) TestFindByIDUnknown() {
	_, err := s.store.FindByID(context.Background(), id.RecordID(uuid.New()))
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *MemoryStoreSuite) TestFindByIDReturnsCopy() {
	ctx := context.Background()
	rec := s.seed(&record.Claimable{Kind: record.KindParticipant, Skills: []string{"go"}})

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	got.Name = "mutated"
	got.Skills[0] = "mutated"

	fresh, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Empty(fresh.Name)
	s.Equal([]string{"go"}, fresh.Skills)
}

func (s *MemoryStoreSuite) TestClaimOwner() {
	ctx := context.Background()
	owner := id.IdentityID(uuid.New())
	stale := 55
	rec := s.seed(&record.Claimable{Kind: record.KindParticipant, MatchConfidence: &stale})

	s.Require().NoError(s.store.ClaimOwner(ctx, rec.ID, owner))

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.OwnerID)
	s.Equal(owner, *got.OwnerID)
	s.Nil(got.MatchConfidence, "stale advisory confidence is cleared")

	s.Run("second claim loses", func() {
		err := s.store.ClaimOwner(ctx, rec.ID, id.IdentityID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("unknown record", func() {
		err := s.store.ClaimOwner(ctx, id.RecordID(uuid.New()), owner)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *MemoryStoreSuite) TestReleaseOwner() {
	ctx := context.Background()
	owner := id.IdentityID(uuid.New())
	rec := s.seed(&record.Claimable{Kind: record.KindParticipant})
	s.Require().NoError(s.store.ClaimOwner(ctx, rec.ID, owner))

	s.Run("wrong expected holder is a conflict", func() {
		err := s.store.ReleaseOwner(ctx, rec.ID, id.IdentityID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("expected holder releases", func() {
		s.Require().NoError(s.store.ReleaseOwner(ctx, rec.ID, owner))
		got, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Nil(got.OwnerID)
	})

	s.Run("releasing an unclaimed record is a conflict", func() {
		err := s.store.ReleaseOwner(ctx, rec.ID, owner)
		s.True(errors.Is(err, sentinel.ErrConflict))
	})
}

func (s *MemoryStoreSuite) TestReassignOwner() {
	ctx := context.Background()
	from := id.IdentityID(uuid.New())
	to := id.IdentityID(uuid.New())
	rec := s.seed(&record.Claimable{Kind: record.KindProject})
	s.Require().NoError(s.store.ClaimOwner(ctx, rec.ID, from))

	s.Run("wrong from-holder is a conflict", func() {
		err := s.store.ReassignOwner(ctx, rec.ID, to, from)
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("reassigns from the current holder", func() {
		s.Require().NoError(s.store.ReassignOwner(ctx, rec.ID, from, to))
		got, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(to, *got.OwnerID)
	})
}

func (s *MemoryStoreSuite) TestListUnclaimed() {
	ctx := context.Background()
	open := s.seed(&record.Claimable{Kind: record.KindParticipant})
	claimed := s.seed(&record.Claimable{Kind: record.KindParticipant})
	s.Require().NoError(s.store.ClaimOwner(ctx, claimed.ID, id.IdentityID(uuid.New())))

	out, err := s.store.ListUnclaimed(ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(open.ID, out[0].ID)
}

// TestConcurrentClaimExactlyOneWinner verifies the store-level CAS guarantee
// every claim path builds on.
func (s *MemoryStoreSuite) TestConcurrentClaimExactlyOneWinner() {
	ctx := context.Background()
	rec := s.seed(&record.Claimable{Kind: record.KindParticipant})

	const goroutines = 50
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.ClaimOwner(ctx, rec.ID, id.IdentityID(uuid.New()))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(1, wins.Load())
	s.EqualValues(goroutines-1, conflicts.Load())
}
