//go:build integration

package records_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/record"
	"reclink/internal/record/store/records"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
	"reclink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *records.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = records.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "claimable_records")
	s.Require().NoError(err)
}

func newTestRecord(kind record.Kind) *record.Claimable {
	return &record.Claimable{
		ID:           id.RecordID(uuid.New()),
		Kind:         kind,
		Name:         "Anna Lind",
		ContactEmail: "anna@example.se",
		ContactPhone: "0701234567",
		Location:     "Stockholm",
		Skills:       []string{"golang", "react"},
		Interests:    []string{"open source"},
	}
}

func (s *PostgresStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	rec := newTestRecord(record.KindParticipant)
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)
	s.Equal(rec.Kind, got.Kind)
	s.Equal(rec.Name, got.Name)
	s.Equal(rec.Skills, got.Skills)
	s.Nil(got.OwnerID)
	s.False(got.CreatedAt.IsZero())
}

func (s *PostgresStoreSuite) TestFindUnknownRecord() {
	_, err := s.store.FindByID(context.Background(), id.RecordID(uuid.New()))
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestClaimOwnerConditionalUpdate() {
	ctx := context.Background()
	rec := newTestRecord(record.KindParticipant)
	stale := 60
	rec.MatchConfidence = &stale
	s.Require().NoError(s.store.Save(ctx, rec))

	owner := id.IdentityID(uuid.New())
	s.Require().NoError(s.store.ClaimOwner(ctx, rec.ID, owner))

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.OwnerID)
	s.Equal(owner, *got.OwnerID)
	s.Nil(got.MatchConfidence)

	s.Run("claiming a claimed record conflicts", func() {
		err := s.store.ClaimOwner(ctx, rec.ID, id.IdentityID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("claiming a missing record is not found", func() {
		err := s.store.ClaimOwner(ctx, id.RecordID(uuid.New()), owner)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *PostgresStoreSuite) TestReleaseAndReassign() {
	ctx := context.Background()
	rec := newTestRecord(record.KindProject)
	s.Require().NoError(s.store.Save(ctx, rec))

	first := id.IdentityID(uuid.New())
	second := id.IdentityID(uuid.New())
	s.Require().NoError(s.store.ClaimOwner(ctx, rec.ID, first))

	s.Run("release with wrong holder conflicts", func() {
		err := s.store.ReleaseOwner(ctx, rec.ID, second)
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("reassign moves ownership", func() {
		s.Require().NoError(s.store.ReassignOwner(ctx, rec.ID, first, second))
		got, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(second, *got.OwnerID)
	})

	s.Run("release by current holder clears the link", func() {
		s.Require().NoError(s.store.ReleaseOwner(ctx, rec.ID, second))
		got, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Nil(got.OwnerID)
	})
}

func (s *PostgresStoreSuite) TestListUnclaimed() {
	ctx := context.Background()
	open := newTestRecord(record.KindParticipant)
	taken := newTestRecord(record.KindParticipant)
	s.Require().NoError(s.store.Save(ctx, open))
	s.Require().NoError(s.store.Save(ctx, taken))
	s.Require().NoError(s.store.ClaimOwner(ctx, taken.ID, id.IdentityID(uuid.New())))

	out, err := s.store.ListUnclaimed(ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(open.ID, out[0].ID)
}

// TestConcurrentClaimExactlyOneWinner verifies that the conditional UPDATE
// decides races in the database, not in application code.
func (s *PostgresStoreSuite) TestConcurrentClaimExactlyOneWinner() {
	ctx := context.Background()
	rec := newTestRecord(record.KindParticipant)
	s.Require().NoError(s.store.Save(ctx, rec))

	const goroutines = 30
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
