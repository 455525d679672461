// Package claim implements the ownership state machine: self-service claims
// and unclaims, with the audit write and the owner mutation grouped in one
// logical transaction.
package claim

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"reclink/internal/audit"
	"reclink/internal/identity"
	"reclink/internal/match"
	"reclink/internal/platform/metrics"
	"reclink/internal/record"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
	"reclink/pkg/email"
	"reclink/pkg/platform/sentinel"
	"reclink/pkg/platform/tx"
)

// DefaultSelfServiceThreshold is the minimum confidence for claims that lack
// an exact email match.
const DefaultSelfServiceThreshold = 80

// RecordStore is the authoritative owner-state boundary. ClaimOwner and
// ReleaseOwner are conditional updates: the store, not this service, decides
// races.
type RecordStore interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*record.Claimable, error)
	ClaimOwner(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) error
	ReleaseOwner(ctx context.Context, recordID id.RecordID, expected id.IdentityID) error
}

// Matcher runs a fresh candidate search. The claim path deliberately does not
// go through the match cache: eligibility uses current store state.
type Matcher interface {
	Search(ctx context.Context, ident identity.Identity) (*match.Result, error)
}

// AuditPublisher appends immutable history entries.
type AuditPublisher interface {
	Emit(ctx context.Context, entry *audit.Entry) error
}

// Invalidator drops cached matches after a successful transition.
type Invalidator interface {
	Invalidate(ctx context.Context, identityID id.IdentityID)
}

// Service executes claim and unclaim transitions.
type Service struct {
	records   RecordStore
	matcher   Matcher
	publisher AuditPublisher
	runner    tx.Runner
	cache     Invalidator
	threshold int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithCache(cache Invalidator) Option {
	return func(s *Service) { s.cache = cache }
}

func WithThreshold(threshold int) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(records RecordStore, matcher Matcher, publisher AuditPublisher, runner tx.Runner, logger *slog.Logger, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if runner == nil {
		runner = tx.NoopRunner{}
	}
	s := &Service{
		records:   records,
		matcher:   matcher,
		publisher: publisher,
		runner:    runner,
		threshold: DefaultSelfServiceThreshold,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Claim links the record to the identity if eligible. Eligibility is either
// an exact contact-email match or the record appearing in a fresh candidate
// search at or above the threshold. The owner mutation and the audit write
// commit together; losing the race yields AlreadyClaimed.
func (s *Service) Claim(ctx context.Context, ident identity.Identity, recordID id.RecordID) (*record.Claimable, error) {
	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Claimed() {
		s.countClaim(string(audit.MethodEmailMatch), "already_claimed")
		return nil, dErrors.New(dErrors.CodeAlreadyClaimed, "record is already claimed")
	}

	if !email.Equal(ident.Email, rec.ContactEmail) {
		confidence, err := s.currentConfidence(ctx, ident, recordID)
		if err != nil {
			return nil, err
		}
		if confidence < s.threshold {
			s.countClaim(string(audit.MethodEmailMatch), "confidence_too_low")
			return nil, dErrors.New(dErrors.CodeConfidenceTooLow, "no email match and confidence below self-service threshold")
		}
	}

	entry := &audit.Entry{
		ID:        id.EntryID(uuid.New()),
		RecordID:  recordID,
		Action:    audit.ActionClaimed,
		ClaimedBy: ident.ID,
		Method:    audit.MethodEmailMatch,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.ClaimOwner(ctx, recordID, ident.ID); err != nil {
			return translateStoreErr(err, "claim record", dErrors.CodeAlreadyClaimed)
		}
		if err := s.publisher.Emit(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit write failed, claim rolled back")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAuditWriteFailed) {
			// SQL runners roll the owner mutation back with the transaction;
			// in-memory runners cannot, so compensate explicitly. The release
			// is conditional on our own identity and therefore harmless when
			// the transaction never committed.
			s.compensateClaim(ctx, recordID, ident.ID)
		}
		if dErrors.HasCode(err, dErrors.CodeAlreadyClaimed) {
			s.countClaim(string(audit.MethodEmailMatch), "lost_race")
		}
		return nil, err
	}

	s.afterTransition(ctx, ident.ID)
	s.countClaim(string(audit.MethodEmailMatch), "claimed")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "record claimed",
			"record_id", recordID.String(),
			"identity_id", ident.ID.String(),
		)
	}

	return s.findRecord(ctx, recordID)
}

// Unclaim clears the owner link. The actor must currently hold the record;
// the release is conditional on that holder so a concurrent transition makes
// the retry re-read fresh state.
func (s *Service) Unclaim(ctx context.Context, actor identity.Identity, recordID id.RecordID) error {
	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !rec.Claimed() {
		return dErrors.New(dErrors.CodeConflict, "record is not claimed")
	}
	if *rec.OwnerID != actor.ID {
		return dErrors.New(dErrors.CodeForbidden, "record is claimed by another identity")
	}

	entry := &audit.Entry{
		ID:        id.EntryID(uuid.New()),
		RecordID:  recordID,
		Action:    audit.ActionUnclaimed,
		ClaimedBy: actor.ID,
		Method:    audit.MethodEmailMatch,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.ReleaseOwner(ctx, recordID, actor.ID); err != nil {
			return translateStoreErr(err, "unclaim record", dErrors.CodeConflict)
		}
		if err := s.publisher.Emit(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit write failed, unclaim rolled back")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAuditWriteFailed) {
			s.compensateUnclaim(ctx, recordID, actor.ID)
		}
		return err
	}

	s.afterTransition(ctx, actor.ID)
	s.countClaim(string(audit.MethodEmailMatch), "unclaimed")
	return nil
}

func (s *Service) findRecord(ctx context.Context, recordID id.RecordID) (*record.Claimable, error) {
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
	}
	return rec, nil
}

func (s *Service) currentConfidence(ctx context.Context, ident identity.Identity, recordID id.RecordID) (int, error) {
	result, err := s.matcher.Search(ctx, ident)
	if err != nil {
		return 0, err
	}
	target := uuid.UUID(recordID)
	for _, cand := range result.Records {
		if cand.Target.ID == target {
			return cand.Confidence, nil
		}
	}
	return 0, nil
}

func (s *Service) compensateClaim(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) {
	if err := s.records.ReleaseOwner(context.WithoutCancel(ctx), recordID, identityID); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) && s.logger != nil {
			s.logger.ErrorContext(ctx, "claim compensation failed",
				"record_id", recordID.String(),
				"error", err,
			)
		}
	}
}

func (s *Service) compensateUnclaim(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) {
	if err := s.records.ClaimOwner(context.WithoutCancel(ctx), recordID, identityID); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) && s.logger != nil {
			s.logger.ErrorContext(ctx, "unclaim compensation failed",
				"record_id", recordID.String(),
				"error", err,
			)
		}
	}
}

func (s *Service) afterTransition(ctx context.Context, identityID id.IdentityID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, identityID)
	}
}

func (s *Service) countClaim(method, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordClaim(method, outcome)
	}
}

func translateStoreErr(err error, op string, conflictCode dErrors.Code) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, op+": record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, conflictCode, op+": owner changed concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op+": store unavailable")
	}
}
