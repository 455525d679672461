package identities

import (
	"context"
	"sort"
	"strings"
	"sync"

	"reclink/internal/identity"
	id "reclink/pkg/domain"
	"reclink/pkg/email"
	"reclink/pkg/platform/sentinel"
)

// InMemory mirrors the auth provider's account directory for dev and tests.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]identity.Identity
}

func New() *InMemory {
	return &InMemory{identities: make(map[id.IdentityID]identity.Identity)}
}

func (s *InMemory) Save(_ context.Context, ident identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identities[ident.ID] = ident
	return nil
}

func (s *InMemory) FindByID(_ context.Context, identityID id.IdentityID) (identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[identityID]
	if !ok {
		return identity.Identity{}, sentinel.ErrNotFound
	}
	return ident, nil
}

// SearchByEmail returns identities whose email contains the query,
// case-insensitively. Results are ordered by email for stable pages.
func (s *InMemory) SearchByEmail(_ context.Context, query string, limit int) ([]identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := email.Normalize(query)
	var out []identity.Identity
	for _, ident := range s.identities {
		if strings.Contains(email.Normalize(ident.Email), needle) {
			out = append(out, ident)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
