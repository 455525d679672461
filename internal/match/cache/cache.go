// Package cache memoizes candidate search results per identity. The cache is
// advisory only: the claim executor always re-reads authoritative owner state
// and never trusts a cached confidence for its final decision.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"reclink/internal/identity"
	"reclink/internal/match"
	"reclink/internal/platform/metrics"
	id "reclink/pkg/domain"
)

// DefaultTTL bounds staleness when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// Backend stores computed results keyed by identity id. Get misses on any
// backend failure; Set and Delete are best effort.
type Backend interface {
	Get(ctx context.Context, key string) (*match.Result, bool)
	Set(ctx context.Context, key string, result *match.Result, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Searcher is the underlying candidate search.
type Searcher interface {
	Search(ctx context.Context, ident identity.Identity) (*match.Result, error)
}

// Cache wraps a Searcher with TTL memoization and single-flight deduping:
// concurrent callers for one identity share a single in-flight scan.
type Cache struct {
	backend Backend
	search  Searcher
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(backend Backend, search Searcher, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		backend: backend,
		search:  search,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// Matches returns the cached result for the identity, computing it at most
// once per TTL window. Inside the window repeated calls return the identical
// result even if the underlying stores changed.
func (c *Cache) Matches(ctx context.Context, ident identity.Identity) (*match.Result, error) {
	key := ident.ID.String()

	if result, ok := c.backend.Get(ctx, key); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return result, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have populated the backend while this caller
		// waited on the group lock.
		if result, ok := c.backend.Get(ctx, key); ok {
			return result, nil
		}
		result, err := c.search.Search(ctx, ident)
		if err != nil {
			return nil, err
		}
		c.backend.Set(ctx, key, result, c.ttl)
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		if shared {
			c.metrics.CacheHits.Inc()
		} else {
			c.metrics.CacheMisses.Inc()
		}
	}

	return v.(*match.Result), nil
}

// Invalidate drops the entry so the next call rescans ("search again").
func (c *Cache) Invalidate(ctx context.Context, identityID id.IdentityID) {
	key := identityID.String()
	c.group.Forget(key)
	c.backend.Delete(ctx, key)
	if c.logger != nil {
		c.logger.DebugContext(ctx, "match cache invalidated", "identity_id", key)
	}
}
