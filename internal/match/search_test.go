package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/identity"
	"reclink/internal/record"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// =============================================================================
// Candidate Search Test Suite
// =============================================================================
// Justification for unit tests: the search pipeline combines scoring with
// filtering floors, the submission window, and ordering guarantees. Stub
// sources make each behavior observable without a database.

type stubRecordSource struct {
	records []*record.Claimable
	err     error
}

func (s *stubRecordSource) ListUnclaimed(context.Context) ([]*record.Claimable, error) {
	return s.records, s.err
}

type stubSubmissionSource struct {
	submissions []*record.Submission
	err         error
	gotCutoff   time.Time
}

func (s *stubSubmissionSource) ListPendingSince(_ context.Context, cutoff time.Time) ([]*record.Submission, error) {
	s.gotCutoff = cutoff
	return s.submissions, s.err
}

type SearchSuite struct {
	suite.Suite
	records     *stubRecordSource
	submissions *stubSubmissionSource
	searcher    *Searcher
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchSuite))
}

func (s *SearchSuite) SetupTest() {
	s.records = &stubRecordSource{}
	s.submissions = &stubSubmissionSource{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.searcher = NewSearcher(s.records, s.submissions, DefaultSubmissionWindow, logger, nil)
}

func (s *SearchSuite) searchingIdentity() identity.Identity {
	return identity.Identity{
		ID:       id.IdentityID(uuid.New()),
		Email:    "anna@example.se",
		FullName: "Anna Lind",
	}
}

func (s *SearchSuite) TestNoMatchesIsNotAnError() {
	result, err := s.searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	s.Empty(result.Records)
	s.Empty(result.Submissions)
	s.False(result.FetchedAt.IsZero())
}

func (s *SearchSuite) TestRecordFloorFiltersWeakCandidates() {
	strong := &record.Claimable{
		ID:           id.RecordID(uuid.New()),
		Kind:         record.KindParticipant,
		ContactEmail: "anna@example.se",
	}
	// Name-medium alone scores 50, exactly at the record floor.
	borderline := &record.Claimable{
		ID:   id.RecordID(uuid.New()),
		Kind: record.KindParticipant,
		Name: "Anna Lindqvist",
	}
	weak := &record.Claimable{
		ID:       id.RecordID(uuid.New()),
		Kind:     record.KindParticipant,
		Location: "contains nothing useful",
	}
	s.records.records = []*record.Claimable{weak, borderline, strong}

	result, err := s.searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	s.Require().Len(result.Records, 2)
	s.Equal(uuid.UUID(strong.ID), result.Records[0].Target.ID)
	s.Equal(100, result.Records[0].Confidence)
	s.Equal(uuid.UUID(borderline.ID), result.Records[1].Target.ID)
	s.Equal(50, result.Records[1].Confidence)
}

func (s *SearchSuite) TestSubmissionFloorIsStricter() {
	// Name-medium scores 50: enough for a record, not for a submission.
	sub := &record.Submission{
		ID:          id.SubmissionID(uuid.New()),
		SubmittedBy: "Anna Lindqvist",
		Status:      record.SubmissionPending,
		CreatedAt:   time.Now(),
	}
	s.submissions.submissions = []*record.Submission{sub}

	result, err := s.searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	s.Empty(result.Submissions)
}

func (s *SearchSuite) TestSubmissionCutoffUsesConfiguredWindow() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	searcher := NewSearcher(s.records, s.submissions, 7*24*time.Hour, logger, nil)

	before := time.Now().Add(-7 * 24 * time.Hour)
	_, err := searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	after := time.Now().Add(-7 * 24 * time.Hour)

	s.False(s.submissions.gotCutoff.Before(before))
	s.False(s.submissions.gotCutoff.After(after))
}

func (s *SearchSuite) TestSubmissionOrderingBreaksTiesByRecency() {
	now := time.Now()
	older := &record.Submission{
		ID:           id.SubmissionID(uuid.New()),
		ContactEmail: "anna@example.se",
		Status:       record.SubmissionPending,
		CreatedAt:    now.Add(-2 * time.Hour),
	}
	newer := &record.Submission{
		ID:           id.SubmissionID(uuid.New()),
		ContactEmail: "anna@example.se",
		Status:       record.SubmissionPending,
		CreatedAt:    now.Add(-1 * time.Hour),
	}
	nameOnly := &record.Submission{
		ID:          id.SubmissionID(uuid.New()),
		SubmittedBy: "Anna Lind",
		Status:      record.SubmissionPending,
		CreatedAt:   now,
	}
	s.submissions.submissions = []*record.Submission{older, nameOnly, newer}

	result, err := s.searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	s.Require().Len(result.Submissions, 3)
	s.Equal(uuid.UUID(newer.ID), result.Submissions[0].Target.ID)
	s.Equal(uuid.UUID(older.ID), result.Submissions[1].Target.ID)
	s.Equal(uuid.UUID(nameOnly.ID), result.Submissions[2].Target.ID)
}

func (s *SearchSuite) TestSubmissionCandidatesAreNotClaimable() {
	sub := &record.Submission{
		ID:           id.SubmissionID(uuid.New()),
		ContactEmail: "anna@example.se",
		Status:       record.SubmissionPending,
		CreatedAt:    time.Now(),
	}
	s.submissions.submissions = []*record.Submission{sub}

	result, err := s.searcher.Search(context.Background(), s.searchingIdentity())
	s.Require().NoError(err)
	s.Require().Len(result.Submissions, 1)
	s.False(result.Submissions[0].Claimable)
	s.Equal(TargetSubmission, result.Submissions[0].Target.Kind)
}

func (s *SearchSuite) TestStoreFailureSurfacesAsUnavailable() {
	s.Run("record store", func() {
		s.records.err = errors.New("connection refused")
		_, err := s.searcher.Search(context.Background(), s.searchingIdentity())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.records.err = nil
	})

	s.Run("submission store", func() {
		s.submissions.err = errors.New("connection refused")
		_, err := s.searcher.Search(context.Background(), s.searchingIdentity())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.submissions.err = nil
	})
}
