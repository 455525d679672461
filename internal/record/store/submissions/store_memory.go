package submissions

import (
	"context"
	"sync"
	"time"

	"reclink/internal/record"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
)

// InMemory keeps pending submissions in a mutex-guarded map.
type InMemory struct {
	mu          sync.RWMutex
	submissions map[id.SubmissionID]*record.Submission
}

func New() *InMemory {
	return &InMemory{submissions: make(map[id.SubmissionID]*record.Submission)}
}

func (s *InMemory) Save(_ context.Context, sub *record.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.submissions[cp.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, subID id.SubmissionID) (*record.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

// ListPendingSince returns pending submissions created at or after the cutoff.
func (s *InMemory) ListPendingSince(_ context.Context, cutoff time.Time) ([]*record.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Submission
	for _, sub := range s.submissions {
		if sub.Status != record.SubmissionPending {
			continue
		}
		if sub.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	return out, nil
}
