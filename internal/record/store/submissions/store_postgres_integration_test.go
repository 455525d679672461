//go:build integration

package submissions_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/record"
	"reclink/internal/record/store/submissions"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
	"reclink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *submissions.PostgresStore
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
	s.store = submissions.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "submissions")
	s.Require().NoError(err)
}

func newTestSubmission(status record.SubmissionStatus, age time.Duration) *record.Submission {
	return &record.Submission{
		ID:           id.SubmissionID(uuid.New()),
		Type:         "story",
		Content:      "volunteered at the spring cleanup",
		ContactEmail: "anna@example.se",
		SubmittedBy:  "Anna Lind",
		Location:     "Stockholm",
		Status:       status,
		CreatedAt:    time.Now().UTC().Add(-age).Truncate(time.Millisecond),
	}
}

func (s *PostgresStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	sub := newTestSubmission(record.SubmissionPending, time.Hour)

	err := s.store.Save(ctx, sub)
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, got.ID)
	s.Equal(sub.Content, got.Content)
	s.Equal(sub.ContactEmail, got.ContactEmail)
	s.Equal(record.SubmissionPending, got.Status)
	s.True(sub.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestFindUnknownReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.SubmissionID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListPendingSinceFiltersByCutoff() {
	ctx := context.Background()
	inside := newTestSubmission(record.SubmissionPending, 24*time.Hour)
	outside := newTestSubmission(record.SubmissionPending, 40*24*time.Hour)
	s.Require().NoError(s.store.Save(ctx, inside))
	s.Require().NoError(s.store.Save(ctx, outside))

	got, err := s.store.ListPendingSince(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(inside.ID, got[0].ID)
}

func (s *PostgresStoreSuite) TestListPendingSinceExcludesResolvedStatuses() {
	ctx := context.Background()
	pending := newTestSubmission(record.SubmissionPending, time.Hour)
	approved := newTestSubmission(record.SubmissionApproved, time.Hour)
	rejected := newTestSubmission(record.SubmissionRejected, time.Hour)
	for _, sub := range []*record.Submission{pending, approved, rejected} {
		s.Require().NoError(s.store.Save(ctx, sub))
	}

	got, err := s.store.ListPendingSince(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(pending.ID, got[0].ID)
}

func (s *PostgresStoreSuite) TestListPendingSinceOrdersNewestFirst() {
	ctx := context.Background()
	older := newTestSubmission(record.SubmissionPending, 3*time.Hour)
	newer := newTestSubmission(record.SubmissionPending, time.Hour)
	s.Require().NoError(s.store.Save(ctx, older))
	s.Require().NoError(s.store.Save(ctx, newer))

	got, err := s.store.ListPendingSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Equal(older.ID, got[1].ID)
}

func (s *PostgresStoreSuite) TestListPendingSinceEmptyWindow() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, newTestSubmission(record.SubmissionPending, 48*time.Hour)))

	got, err := s.store.ListPendingSince(ctx, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Empty(got)
}
