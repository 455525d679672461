package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/audit"
	auditmemory "reclink/internal/audit/store/memory"
	"reclink/internal/claim"
	"reclink/internal/claim/handler"
	"reclink/internal/identity"
	"reclink/internal/match"
	"reclink/internal/match/cache"
	"reclink/internal/record"
	"reclink/internal/record/store/records"
	"reclink/internal/record/store/submissions"
	id "reclink/pkg/domain"
	"reclink/pkg/testutil"
)

// =============================================================================
// Claim Handler Test Suite
// =============================================================================
// Justification for handler tests: the self-service surface wires auth,
// routing, and error translation together. These run against the real
// services over in-memory stores, so status codes reflect actual outcomes.

type ClaimHandlerSuite struct {
	suite.Suite
	router  chi.Router
	records *records.InMemory
	tokens  *identity.TokenService
}

func TestClaimHandlerSuite(t *testing.T) {
	suite.Run(t, new(ClaimHandlerSuite))
}

func (s *ClaimHandlerSuite) SetupTest() {
	s.records = records.New()
	subs := submissions.New()
	auditStore := auditmemory.New()
	publisher := audit.NewPublisher(auditStore, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	searcher := match.NewSearcher(s.records, subs, 0, logger, nil)
	matchCache := cache.New(cache.NewMemoryBackend(time.Minute), searcher, time.Minute, logger, nil)

	service, err := claim.New(s.records, searcher, publisher, nil, logger, claim.WithCache(matchCache))
	s.Require().NoError(err)

	s.tokens = identity.NewTokenService("test-key", "reclink-test")
	s.router = chi.NewRouter()
	handler.New(matchCache, service, s.tokens, logger, nil).Register(s.router)
}

func (s *ClaimHandlerSuite) authed(req *http.Request, ident identity.Identity) *http.Request {
	token, err := s.tokens.GenerateAccessToken(ident, time.Minute)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *ClaimHandlerSuite) seedRecord(rec *record.Claimable) *record.Claimable {
	if rec.ID.IsNil() {
		rec.ID = id.RecordID(uuid.New())
	}
	s.Require().NoError(s.records.Save(context.Background(), rec))
	return rec
}

func anna() identity.Identity {
	return identity.Identity{
		ID:       id.IdentityID(uuid.New()),
		Email:    "anna@example.se",
		FullName: "Anna Lind",
	}
}

func (s *ClaimHandlerSuite) TestUnauthenticatedRequestsAreRejected() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/claim/matches")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *ClaimHandlerSuite) TestInvalidTokenIsRejected() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/claim/matches")
	req.Header.Set("Authorization", "Bearer garbage")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

type matchesPayload struct {
	Records []struct {
		Confidence      int      `json:"confidence"`
		MatchedCriteria []string `json:"matched_criteria"`
	} `json:"records"`
}

func (s *ClaimHandlerSuite) TestMatchesReturnsCandidates() {
	s.seedRecord(&record.Claimable{
		Kind:         record.KindParticipant,
		ContactEmail: "anna@example.se",
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/claim/matches"), anna())
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	payload := testutil.UnmarshalResponse[matchesPayload](s.T(), rr)
	s.Require().Len(payload.Records, 1)
	s.Equal(100, payload.Records[0].Confidence)
	s.Contains(payload.Records[0].MatchedCriteria, match.CriterionEmailExact)
}

func (s *ClaimHandlerSuite) TestRefreshReflectsNewRecords() {
	ident := anna()

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/claim/matches"), ident)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Empty(testutil.UnmarshalResponse[matchesPayload](s.T(), rr).Records)

	s.seedRecord(&record.Claimable{
		Kind:         record.KindParticipant,
		ContactEmail: "anna@example.se",
	})

	// The cached result is still empty inside the TTL window.
	req = s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/claim/matches"), ident)
	rr = testutil.DoRequest(s.router, req)
	s.Empty(testutil.UnmarshalResponse[matchesPayload](s.T(), rr).Records)

	// Search-again invalidates and rescans.
	req = s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/matches/refresh", nil), ident)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Len(testutil.UnmarshalResponse[matchesPayload](s.T(), rr).Records, 1)
}

func (s *ClaimHandlerSuite) TestClaimRecord() {
	ident := anna()
	rec := s.seedRecord(&record.Claimable{
		Kind:         record.KindParticipant,
		Name:         "Anna Lind",
		ContactEmail: "anna@example.se",
	})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String(), nil), ident)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	payload := testutil.UnmarshalResponse[struct {
		OwnerID *string `json:"owner_id"`
	}](s.T(), rr)
	s.Require().NotNil(payload.OwnerID)
	s.Equal(ident.ID.String(), *payload.OwnerID)
}

func (s *ClaimHandlerSuite) TestClaimOutcomes() {
	ident := anna()

	s.Run("malformed record id", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/not-a-uuid", nil), ident)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown record", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+uuid.NewString(), nil), ident)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("confidence too low", func() {
		rec := s.seedRecord(&record.Claimable{
			Kind: record.KindParticipant,
			Name: "Anna Lind", // name-high alone is 70, below the threshold
		})
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String(), nil), ident)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "confidence_too_low")
	})

	s.Run("already claimed", func() {
		rec := s.seedRecord(&record.Claimable{
			Kind:         record.KindParticipant,
			ContactEmail: "anna@example.se",
		})
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String(), nil), ident)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		req = s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String(), nil), anna())
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_claimed")
	})
}

func (s *ClaimHandlerSuite) TestUnclaim() {
	ident := anna()
	rec := s.seedRecord(&record.Claimable{
		Kind:         record.KindParticipant,
		ContactEmail: "anna@example.se",
	})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String(), nil), ident)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	s.Run("non-owner cannot unclaim", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String()+"/unclaim", nil), anna())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("owner unclaims", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claim/records/"+rec.ID.String()+"/unclaim", nil), ident)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})
}
