package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reclink/internal/admin"
	"reclink/internal/audit"
	"reclink/internal/identity"
	"reclink/internal/platform/metrics"
	"reclink/internal/platform/middleware"
	"reclink/internal/transport/http/shared"
	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// Service is the admin override executor behind the handler.
type Service interface {
	SearchIdentities(ctx context.Context, query string) ([]identity.Identity, error)
	ForceClaim(ctx context.Context, admin identity.Identity, targetID id.IdentityID, recordID id.RecordID, notes string) error
	Unclaim(ctx context.Context, admin identity.Identity, recordID id.RecordID, notes string) error
	BulkUpdate(ctx context.Context, admin identity.Identity, items []admin.BulkItem) []admin.BulkResult
}

// History serves the read side of the claim audit log.
type History interface {
	History(ctx context.Context, recordID id.RecordID) ([]*audit.Entry, error)
	Recent(ctx context.Context, limit, offset int) ([]*audit.Entry, error)
}

// Handler is the admin surface. Routes are double-gated: the shared admin
// token authorizes access, the bearer identity attributes the mutation.
type Handler struct {
	logger     *slog.Logger
	service    Service
	history    History
	metrics    *metrics.Metrics
	validator  middleware.IdentityValidator
	adminToken string
}

func New(service Service, history History, validator middleware.IdentityValidator, adminToken string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		history:    history,
		metrics:    m,
		validator:  validator,
		adminToken: adminToken,
	}
}

// Register mounts the admin routes on the given router.
func (h *Handler) Register(r chi.Router) {
	adminRouter := chi.NewRouter()
	adminRouter.Use(middleware.Recovery(h.logger))
	adminRouter.Use(middleware.RequestID)
	adminRouter.Use(middleware.Logger(h.logger))
	adminRouter.Use(middleware.Timeout(60 * time.Second))
	adminRouter.Use(middleware.ContentTypeJSON)
	adminRouter.Use(middleware.Latency(h.metrics))
	adminRouter.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
	adminRouter.Use(middleware.RequireAuth(h.validator, h.logger))
	adminRouter.Get("/identities", h.handleSearchIdentities)
	adminRouter.Post("/records/{recordID}/claim", h.handleForceClaim)
	adminRouter.Post("/records/{recordID}/unclaim", h.handleUnclaim)
	adminRouter.Post("/claims/bulk", h.handleBulk)
	adminRouter.Get("/audit", h.handleRecentAudit)
	adminRouter.Get("/records/{recordID}/audit", h.handleRecordAudit)

	r.Mount("/admin", adminRouter)
}

func (h *Handler) handleSearchIdentities(w http.ResponseWriter, r *http.Request) {
	idents, err := h.service.SearchIdentities(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	payload := make([]identityPayload, 0, len(idents))
	for _, ident := range idents {
		payload = append(payload, identityPayload{
			ID:       ident.ID.String(),
			Email:    ident.Email,
			FullName: ident.FullName,
			Phone:    ident.Phone,
		})
	}
	shared.WriteJSON(w, http.StatusOK, searchResponse{Identities: payload})
}

func (h *Handler) handleForceClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}

	var req forceClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	targetID, err := id.ParseIdentityID(req.TargetIdentityID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid target identity id"))
		return
	}

	adminIdent := middleware.GetIdentity(ctx)
	if err := h.service.ForceClaim(ctx, adminIdent, targetID, recordID, req.Notes); err != nil {
		h.logOverrideFailure(ctx, "force-claim failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}

	var req unclaimRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	adminIdent := middleware.GetIdentity(ctx)
	if err := h.service.Unclaim(ctx, adminIdent, recordID, req.Notes); err != nil {
		h.logOverrideFailure(ctx, "admin unclaim failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Items) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "bulk request requires at least one item"))
		return
	}

	items := make([]admin.BulkItem, 0, len(req.Items))
	for i, item := range req.Items {
		recordID, err := id.ParseRecordID(item.RecordID)
		if err != nil {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id at index "+strconv.Itoa(i)))
			return
		}
		parsed := admin.BulkItem{
			Op:       admin.BulkOp(item.Op),
			RecordID: recordID,
			Notes:    item.Notes,
		}
		if item.TargetIdentityID != "" {
			targetID, err := id.ParseIdentityID(item.TargetIdentityID)
			if err != nil {
				shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid target identity id at index "+strconv.Itoa(i)))
				return
			}
			parsed.TargetID = targetID
		}
		items = append(items, parsed)
	}

	adminIdent := middleware.GetIdentity(ctx)
	results := h.service.BulkUpdate(ctx, adminIdent, items)

	payload := bulkResponse{Results: make([]bulkResultPayload, 0, len(results))}
	for _, res := range results {
		item := bulkResultPayload{
			RecordID: res.RecordID.String(),
			Op:       string(res.Op),
			OK:       res.Err == nil,
		}
		if res.Err != nil {
			item.Error = string(dErrors.CodeOf(res.Err))
		}
		payload.Results = append(payload.Results, item)
	}
	shared.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")
	entries, err := h.history.Recent(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit log unavailable"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, auditResponse{Entries: auditPayload(entries)})
}

func (h *Handler) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id"))
		return
	}
	entries, err := h.history.History(r.Context(), recordID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit log unavailable"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, auditResponse{Entries: auditPayload(entries)})
}

func (h *Handler) logOverrideFailure(ctx context.Context, msg string, recordID id.RecordID, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"record_id", recordID.String(),
		"error", err.Error(),
	)
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

type identityPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type searchResponse struct {
	Identities []identityPayload `json:"identities"`
}

type forceClaimRequest struct {
	TargetIdentityID string `json:"target_identity_id"`
	Notes            string `json:"notes"`
}

type unclaimRequest struct {
	Notes string `json:"notes"`
}

type bulkRequest struct {
	Items []bulkItemPayload `json:"items"`
}

type bulkItemPayload struct {
	Op               string `json:"op"`
	RecordID         string `json:"record_id"`
	TargetIdentityID string `json:"target_identity_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type bulkResponse struct {
	Results []bulkResultPayload `json:"results"`
}

type bulkResultPayload struct {
	RecordID string `json:"record_id"`
	Op       string `json:"op"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

type auditResponse struct {
	Entries []auditEntryPayload `json:"entries"`
}

type auditEntryPayload struct {
	ID            string    `json:"id"`
	RecordID      string    `json:"record_id"`
	Action        string    `json:"action"`
	ClaimedBy     string    `json:"claimed_by"`
	Method        string    `json:"method"`
	AdminAssisted bool      `json:"admin_assisted"`
	AdminID       *string   `json:"admin_id,omitempty"`
	ClaimedAt     time.Time `json:"claimed_at"`
	Notes         string    `json:"notes,omitempty"`
}

func auditPayload(entries []*audit.Entry) []auditEntryPayload {
	out := make([]auditEntryPayload, 0, len(entries))
	for _, e := range entries {
		item := auditEntryPayload{
			ID:            e.ID.String(),
			RecordID:      e.RecordID.String(),
			Action:        string(e.Action),
			ClaimedBy:     e.ClaimedBy.String(),
			Method:        string(e.Method),
			AdminAssisted: e.AdminAssisted,
			ClaimedAt:     e.ClaimedAt,
			Notes:         e.Notes,
		}
		if e.AdminID != nil {
			adminID := e.AdminID.String()
			item.AdminID = &adminID
		}
		out = append(out, item)
	}
	return out
}
