package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reclink/internal/identity"
	"reclink/internal/match"
	id "reclink/pkg/domain"
)

// =============================================================================
// Match Cache Test Suite
// =============================================================================
// Justification for unit tests: the cache contract is behavioral, not
// structural: bounded staleness, single-flight deduplication, and explicit
// invalidation. A counting searcher makes each guarantee observable.

type countingSearcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingSearcher) Search(_ context.Context, ident identity.Identity) (*match.Result, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &match.Result{FetchedAt: time.Now()}, nil
}

type CacheSuite struct {
	suite.Suite
	searcher *countingSearcher
	cache    *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.searcher = &countingSearcher{}
	s.cache = New(NewMemoryBackend(time.Minute), s.searcher, time.Minute, nil, nil)
}

func someIdentity() identity.Identity {
	return identity.Identity{ID: id.IdentityID(uuid.New()), Email: "a@x.se"}
}

func (s *CacheSuite) TestRepeatedCallsReturnCachedResult() {
	ctx := context.Background()
	ident := someIdentity()

	first, err := s.cache.Matches(ctx, ident)
	s.Require().NoError(err)

	second, err := s.cache.Matches(ctx, ident)
	s.Require().NoError(err)

	s.Same(first, second, "within the TTL the identical result is returned")
	s.EqualValues(1, s.searcher.calls.Load())
}

func (s *CacheSuite) TestEntriesAreKeyedPerIdentity() {
	ctx := context.Background()

	_, err := s.cache.Matches(ctx, someIdentity())
	s.Require().NoError(err)
	_, err = s.cache.Matches(ctx, someIdentity())
	s.Require().NoError(err)

	s.EqualValues(2, s.searcher.calls.Load())
}

func (s *CacheSuite) TestExpiredEntryTriggersRescan() {
	ctx := context.Background()
	ident := someIdentity()
	s.cache = New(NewMemoryBackend(time.Minute), s.searcher, 10*time.Millisecond, nil, nil)

	_, err := s.cache.Matches(ctx, ident)
	s.Require().NoError(err)

	time.Sleep(30 * time.Millisecond)

	_, err = s.cache.Matches(ctx, ident)
	s.Require().NoError(err)
	s.EqualValues(2, s.searcher.calls.Load())
}

func (s *CacheSuite) TestInvalidateForcesFreshSearch() {
	ctx := context.Background()
	ident := someIdentity()

	_, err := s.cache.Matches(ctx, ident)
	s.Require().NoError(err)

	s.cache.Invalidate(ctx, ident.ID)

	_, err = s.cache.Matches(ctx, ident)
	s.Require().NoError(err)
	s.EqualValues(2, s.searcher.calls.Load())
}

func (s *CacheSuite) TestConcurrentMissesShareOneFlight() {
	ctx := context.Background()
	ident := someIdentity()
	s.searcher.delay = 20 * time.Millisecond

	const callers = 25
	var wg sync.WaitGroup
	results := make([]*match.Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := s.cache.Matches(ctx, ident)
			s.NoError(err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	s.EqualValues(1, s.searcher.calls.Load(), "concurrent callers share one scan")
	for i := 1; i < callers; i++ {
		s.Same(results[0], results[i])
	}
}

func (s *CacheSuite) TestSearchErrorsAreNotCached() {
	ctx := context.Background()
	ident := someIdentity()
	s.searcher.err = errors.New("store down")

	_, err := s.cache.Matches(ctx, ident)
	s.Require().Error(err)

	s.searcher.err = nil
	result, err := s.cache.Matches(ctx, ident)
	s.Require().NoError(err)
	s.NotNil(result)
	s.EqualValues(2, s.searcher.calls.Load())
}
