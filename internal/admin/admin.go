// Package admin implements the override path: identity search, force-claim,
// attributable unclaim, and bulk updates. Everything here bypasses confidence
// gating; every mutation is attributed to the acting admin in the audit log.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"reclink/internal/audit"
	"reclink/internal/identity"
	"reclink/internal/platform/metrics"
	"reclink/internal/record"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
	"reclink/pkg/platform/sentinel"
	"reclink/pkg/platform/tx"
)

//go:generate mockgen -source=admin.go -destination=mocks/mocks.go -package=mocks IdentityDirectory,RecordStore,AuditPublisher

// DefaultSearchLimit caps identity search pages.
const DefaultSearchLimit = 20

// IdentityDirectory resolves and searches mirrored auth accounts.
type IdentityDirectory interface {
	FindByID(ctx context.Context, identityID id.IdentityID) (identity.Identity, error)
	SearchByEmail(ctx context.Context, query string, limit int) ([]identity.Identity, error)
}

// RecordStore is the conditional owner-state boundary, including direct
// reassignment for force-claims onto already-claimed records.
type RecordStore interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*record.Claimable, error)
	ClaimOwner(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) error
	ReleaseOwner(ctx context.Context, recordID id.RecordID, expected id.IdentityID) error
	ReassignOwner(ctx context.Context, recordID id.RecordID, from, to id.IdentityID) error
}

// AuditPublisher appends immutable history entries.
type AuditPublisher interface {
	Emit(ctx context.Context, entry *audit.Entry) error
}

// Invalidator drops cached matches for identities affected by a transition.
type Invalidator interface {
	Invalidate(ctx context.Context, identityID id.IdentityID)
}

// Service is the admin override executor.
type Service struct {
	identities    IdentityDirectory
	records       RecordStore
	publisher     AuditPublisher
	runner        tx.Runner
	cache         Invalidator
	allowReassign bool
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Option configures optional collaborators and policy.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache Invalidator) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReassignPolicy controls whether force-claim may overwrite an existing
// holder directly, or must be preceded by an explicit unclaim.
func WithReassignPolicy(allow bool) Option {
	return func(s *Service) { s.allowReassign = allow }
}

func New(identities IdentityDirectory, records RecordStore, publisher AuditPublisher, runner tx.Runner, opts ...Option) (*Service, error) {
	if identities == nil {
		return nil, errors.New("identity directory is required")
	}
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if runner == nil {
		runner = tx.NoopRunner{}
	}
	s := &Service{
		identities:    identities,
		records:       records,
		publisher:     publisher,
		runner:        runner,
		allowReassign: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SearchIdentities runs the free-text partial email match backing the admin
// panel. Confidence plays no role here.
func (s *Service) SearchIdentities(ctx context.Context, query string) ([]identity.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "search query must not be empty")
	}
	idents, err := s.identities.SearchByEmail(ctx, query, DefaultSearchLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity search failed")
	}
	return idents, nil
}

// ForceClaim links the record to the target identity regardless of any
// confidence score. Reassignment of a claimed record is policy-gated.
func (s *Service) ForceClaim(ctx context.Context, admin identity.Identity, targetID id.IdentityID, recordID id.RecordID, notes string) error {
	if admin.ID.IsNil() {
		return dErrors.New(dErrors.CodeAdminAttributionMissing, "force-claim requires an admin identity")
	}

	target, err := s.identities.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "target identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity lookup failed")
	}

	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return err
	}

	var previous *id.IdentityID
	if rec.Claimed() {
		if !s.allowReassign {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "record is claimed; unclaim it before reassigning")
		}
		if *rec.OwnerID == target.ID {
			return dErrors.New(dErrors.CodeConflict, "record is already claimed by the target identity")
		}
		prev := *rec.OwnerID
		previous = &prev
	}

	adminID := admin.ID
	entry := &audit.Entry{
		ID:            id.EntryID(uuid.New()),
		RecordID:      recordID,
		Action:        audit.ActionClaimed,
		ClaimedBy:     target.ID,
		Method:        audit.MethodAdminManual,
		AdminAssisted: true,
		AdminID:       &adminID,
		Notes:         notes,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if previous != nil {
			if err := s.records.ReassignOwner(ctx, recordID, *previous, target.ID); err != nil {
				return translateStoreErr(err, "force-claim record")
			}
		} else if err := s.records.ClaimOwner(ctx, recordID, target.ID); err != nil {
			if !errors.Is(err, sentinel.ErrConflict) {
				return translateStoreErr(err, "force-claim record")
			}
			if err := s.retryAsReassign(ctx, recordID, target.ID, &previous); err != nil {
				return err
			}
		}
		if err := s.publisher.Emit(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit write failed, force-claim rolled back")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAuditWriteFailed) {
			s.compensateForceClaim(ctx, recordID, previous, target.ID)
		}
		return err
	}

	s.invalidate(ctx, target.ID)
	if previous != nil {
		s.invalidate(ctx, *previous)
	}
	s.count("force_claimed")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "record force-claimed",
			"record_id", recordID.String(),
			"target_identity_id", target.ID.String(),
			"admin_identity_id", admin.ID.String(),
			"reassigned", previous != nil,
		)
	}
	return nil
}

// Unclaim clears the owner link with admin attribution. The same optimistic
// re-validation as the self-service path applies.
func (s *Service) Unclaim(ctx context.Context, admin identity.Identity, recordID id.RecordID, notes string) error {
	if admin.ID.IsNil() {
		return dErrors.New(dErrors.CodeAdminAttributionMissing, "unclaim requires an admin identity")
	}

	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !rec.Claimed() {
		return dErrors.New(dErrors.CodeConflict, "record is not claimed")
	}
	owner := *rec.OwnerID

	adminID := admin.ID
	entry := &audit.Entry{
		ID:            id.EntryID(uuid.New()),
		RecordID:      recordID,
		Action:        audit.ActionUnclaimed,
		ClaimedBy:     owner,
		Method:        audit.MethodAdminManual,
		AdminAssisted: true,
		AdminID:       &adminID,
		Notes:         notes,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.ReleaseOwner(ctx, recordID, owner); err != nil {
			return translateStoreErr(err, "unclaim record")
		}
		if err := s.publisher.Emit(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit write failed, unclaim rolled back")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAuditWriteFailed) {
			if claimErr := s.records.ClaimOwner(context.WithoutCancel(ctx), recordID, owner); claimErr != nil {
				if !errors.Is(claimErr, sentinel.ErrConflict) && s.logger != nil {
					s.logger.ErrorContext(ctx, "unclaim compensation failed",
						"record_id", recordID.String(),
						"error", claimErr,
					)
				}
			}
		}
		return err
	}

	s.invalidate(ctx, owner)
	s.count("unclaimed")
	return nil
}

// retryAsReassign handles a record claimed between the unclaimed read and the
// conditional update. When reassignment policy allows, the owner is re-read
// and the transition retried once through the reassign path; otherwise the
// lost race surfaces as already_claimed.
func (s *Service) retryAsReassign(ctx context.Context, recordID id.RecordID, target id.IdentityID, previous **id.IdentityID) error {
	if !s.allowReassign {
		return dErrors.New(dErrors.CodeAlreadyClaimed, "record was claimed concurrently")
	}
	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !rec.Claimed() {
		return dErrors.New(dErrors.CodeAlreadyClaimed, "record owner changed concurrently")
	}
	if *rec.OwnerID == target {
		return dErrors.New(dErrors.CodeConflict, "record is already claimed by the target identity")
	}
	prev := *rec.OwnerID
	if err := s.records.ReassignOwner(ctx, recordID, prev, target); err != nil {
		return translateStoreErr(err, "force-claim record")
	}
	*previous = &prev
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

// compensateForceClaim restores the pre-transition owner after a failed audit
// write. On SQL runners the transaction already rolled back and these
// conditional updates affect zero rows.
func (s *Service) compensateForceClaim(ctx context.Context, recordID id.RecordID, previous *id.IdentityID, target id.IdentityID) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if previous != nil {
		err = s.records.ReassignOwner(ctx, recordID, target, *previous)
	} else {
		err = s.records.ReleaseOwner(ctx, recordID, target)
	}
	if err != nil && !errors.Is(err, sentinel.ErrConflict) && s.logger != nil {
		s.logger.ErrorContext(ctx, "force-claim compensation failed",
			"record_id", recordID.String(),
			"error", err,
		)
	}
}

func (s *Service) invalidate(ctx context.Context, identityID id.IdentityID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, identityID)
	}
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordClaim(string(audit.MethodAdminManual), outcome)
	}
}

func translateStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, op+": record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, op+": owner changed concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op+": store unavailable")
	}
}
