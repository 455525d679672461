package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"reclink/internal/match"
)

// MemoryBackend is the process-local cache backend. Entries expire on their
// own TTL; the janitor sweeps expired entries in the background.
type MemoryBackend struct {
	cache *gocache.Cache
}

func NewMemoryBackend(defaultTTL time.Duration) *MemoryBackend {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemoryBackend{
		cache: gocache.New(defaultTTL, defaultTTL),
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (*match.Result, bool) {
	if v, found := b.cache.Get(key); found {
		return v.(*match.Result), true
	}
	return nil, false
}

func (b *MemoryBackend) Set(_ context.Context, key string, result *match.Result, ttl time.Duration) {
	b.cache.Set(key, result, ttl)
}

func (b *MemoryBackend) Delete(_ context.Context, key string) {
	b.cache.Delete(key)
}
