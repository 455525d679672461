package memory

import (
	"context"
	"sort"
	"sync"

	"reclink/internal/audit"
	id "reclink/pkg/domain"
)

// Store is the in-memory audit sink used by tests and single-node dev runs.
// Entries are copied on the way in and out so callers can never mutate
// history after the fact.
type Store struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *Store) ListByRecord(_ context.Context, recordID id.RecordID) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Entry
	for _, e := range s.entries {
		if e.RecordID == recordID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListRecent(_ context.Context, limit, offset int) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		all = append(all, &cp)
	}
	sortNewestFirst(all)

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func sortNewestFirst(entries []*audit.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ClaimedAt.After(entries[j].ClaimedAt)
	})
}
