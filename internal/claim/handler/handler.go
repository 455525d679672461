package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reclink/internal/identity"
	"reclink/internal/match"
	"reclink/internal/platform/metrics"
	"reclink/internal/platform/middleware"
	"reclink/internal/record"
	"reclink/internal/transport/http/shared"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// Matcher serves cached candidate lists and supports "search again".
type Matcher interface {
	Matches(ctx context.Context, ident identity.Identity) (*match.Result, error)
	Invalidate(ctx context.Context, identityID id.IdentityID)
}

// Claims executes ownership transitions.
type Claims interface {
	Claim(ctx context.Context, ident identity.Identity, recordID id.RecordID) (*record.Claimable, error)
	Unclaim(ctx context.Context, actor identity.Identity, recordID id.RecordID) error
}

// Handler is the self-service claim surface: list matches, refresh, claim,
// unclaim. All routes require a valid bearer token.
type Handler struct {
	logger    *slog.Logger
	matcher   Matcher
	claims    Claims
	metrics   *metrics.Metrics
	validator middleware.IdentityValidator
}

func New(matcher Matcher, claims Claims, validator middleware.IdentityValidator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		matcher:   matcher,
		claims:    claims,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the claim routes on the given router.
func (h *Handler) Register(r chi.Router) {
	claimRouter := chi.NewRouter()
	claimRouter.Use(middleware.Recovery(h.logger))
	claimRouter.Use(middleware.RequestID)
	claimRouter.Use(middleware.Logger(h.logger))
	claimRouter.Use(middleware.Timeout(30 * time.Second))
	claimRouter.Use(middleware.ContentTypeJSON)
	claimRouter.Use(middleware.Latency(h.metrics))
	claimRouter.Use(middleware.RequireAuth(h.validator, h.logger))
	claimRouter.Get("/claim/matches", h.handleMatches)
	claimRouter.Post("/claim/matches/refresh", h.handleRefresh)
	claimRouter.Post("/claim/records/{recordID}", h.handleClaim)
	claimRouter.Post("/claim/records/{recordID}/unclaim", h.handleUnclaim)

	r.Mount("/", claimRouter)
}

func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)
	if ident.ID.IsNil() {
		h.authContextError(w, ctx)
		return
	}

	result, err := h.matcher.Matches(ctx, ident)
	if err != nil {
		h.logger.ErrorContext(ctx, "candidate search failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

// handleRefresh is the "search again" path: drop the cached entry, rescan.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)
	if ident.ID.IsNil() {
		h.authContextError(w, ctx)
		return
	}

	h.matcher.Invalidate(ctx, ident.ID)
	result, err := h.matcher.Matches(ctx, ident)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)
	if ident.ID.IsNil() {
		h.authContextError(w, ctx)
		return
	}

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}

	rec, err := h.claims.Claim(ctx, ident, recordID)
	if err != nil {
		if !clientFault(err) {
			h.logger.ErrorContext(ctx, "claim failed",
				"request_id", middleware.GetRequestID(ctx),
				"record_id", recordID.String(),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordResponse(rec))
}

func (h *Handler) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)
	if ident.ID.IsNil() {
		h.authContextError(w, ctx)
		return
	}

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}

	if err := h.claims.Unclaim(ctx, ident, recordID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authContextError(w http.ResponseWriter, ctx context.Context) {
	// Should never happen with RequireAuth in the chain.
	h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
		"request_id", middleware.GetRequestID(ctx),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
}

// clientFault filters expected rejection outcomes out of the error log.
func clientFault(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeAlreadyClaimed) ||
		dErrors.HasCode(err, dErrors.CodeConfidenceTooLow) ||
		dErrors.HasCode(err, dErrors.CodeNotFound)
}

type recordPayload struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	ContactEmail string  `json:"contact_email,omitempty"`
	Location     string  `json:"location,omitempty"`
	OwnerID      *string `json:"owner_id"`
}

func recordResponse(rec *record.Claimable) recordPayload {
	payload := recordPayload{
		ID:           rec.ID.String(),
		Kind:         string(rec.Kind),
		Name:         rec.Name,
		ContactEmail: rec.ContactEmail,
		Location:     rec.Location,
	}
	if rec.OwnerID != nil {
		owner := rec.OwnerID.String()
		payload.OwnerID = &owner
	}
	return payload
}
