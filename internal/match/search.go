package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"reclink/internal/identity"
	"reclink/internal/platform/metrics"
	"reclink/internal/record"
	dErrors "reclink/pkg/domain-errors"
)

// Confidence floors. Submissions carry a higher bar because they are
// unverified and ephemeral.
const (
	RecordFloor     = 50
	SubmissionFloor = 60
)

// DefaultSubmissionWindow bounds how far back pending submissions are matched.
const DefaultSubmissionWindow = 30 * 24 * time.Hour

// RecordSource lists records still open for claiming.
type RecordSource interface {
	ListUnclaimed(ctx context.Context) ([]*record.Claimable, error)
}

// SubmissionSource lists pending submissions created at or after a cutoff.
type SubmissionSource interface {
	ListPendingSince(ctx context.Context, cutoff time.Time) ([]*record.Submission, error)
}

// Searcher runs candidate searches: scan both universes, score, filter, sort.
type Searcher struct {
	records     RecordSource
	submissions SubmissionSource
	window      time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewSearcher(records RecordSource, submissions SubmissionSource, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Searcher {
	if window <= 0 {
		window = DefaultSubmissionWindow
	}
	return &Searcher{
		records:     records,
		submissions: submissions,
		window:      window,
		logger:      logger,
		metrics:     m,
	}
}

// Search returns scored candidates for the identity. No match is not an
// error: both lists come back empty. Store failures are surfaced as
// unavailable so callers can distinguish "nothing matched" from "could not
// look".
func (s *Searcher) Search(ctx context.Context, ident identity.Identity) (*Result, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SearchesTotal.Inc()
			s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	recs, err := s.records.ListUnclaimed(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store scan failed")
	}

	cutoff := time.Now().Add(-s.window)
	subs, err := s.submissions.ListPendingSince(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "submission store scan failed")
	}

	result := &Result{FetchedAt: time.Now()}

	for _, rec := range recs {
		score := ScoreRecord(ident, rec)
		if score.Confidence < RecordFloor {
			continue
		}
		result.Records = append(result.Records, Candidate{
			Target:          TargetRef{Kind: targetKindFor(rec.Kind), ID: uuid.UUID(rec.ID)},
			Confidence:      score.Confidence,
			MatchedCriteria: score.Criteria,
			Claimable:       true,
		})
	}

	submissionCreated := make(map[uuid.UUID]time.Time, len(subs))
	for _, sub := range subs {
		score := ScoreSubmission(ident, sub)
		if score.Confidence < SubmissionFloor {
			continue
		}
		subID := uuid.UUID(sub.ID)
		submissionCreated[subID] = sub.CreatedAt
		result.Submissions = append(result.Submissions, Candidate{
			Target:          TargetRef{Kind: TargetSubmission, ID: subID},
			Confidence:      score.Confidence,
			MatchedCriteria: score.Criteria,
			Claimable:       false,
		})
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].Confidence > result.Records[j].Confidence
	})
	sort.SliceStable(result.Submissions, func(i, j int) bool {
		a, b := result.Submissions[i], result.Submissions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return submissionCreated[a.Target.ID].After(submissionCreated[b.Target.ID])
	})

	if s.logger != nil {
		s.logger.DebugContext(ctx, "candidate search complete",
			"identity_id", ident.ID.String(),
			"records", len(result.Records),
			"submissions", len(result.Submissions),
		)
	}

	return result, nil
}

func targetKindFor(kind record.Kind) TargetKind {
	if kind == record.KindProject {
		return TargetProject
	}
	return TargetParticipant
}
