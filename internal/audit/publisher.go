package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "reclink/pkg/domain"
)

// Store is the append-only persistence boundary for claim history.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByRecord(ctx context.Context, recordID id.RecordID) ([]*Entry, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*Entry, error)
}

// Publisher captures claim history entries. It stamps ids and timestamps,
// validates invariants, and delegates persistence to the store so tests can
// swap sinks easily.
type Publisher struct {
	store     Store
	pageLimit int
}

// DefaultPageLimit caps global history pages when no limit is configured.
const DefaultPageLimit = 50

func NewPublisher(store Store, pageLimit int) *Publisher {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Publisher{store: store, pageLimit: pageLimit}
}

// Emit validates and appends one entry. Zero ids and timestamps are filled in.
func (p *Publisher) Emit(ctx context.Context, entry *Entry) error {
	if entry.ID.IsNil() {
		entry.ID = id.EntryID(uuid.New())
	}
	if entry.ClaimedAt.IsZero() {
		entry.ClaimedAt = time.Now()
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return p.store.Append(ctx, entry)
}

// History returns the full claim history for one record, newest first.
func (p *Publisher) History(ctx context.Context, recordID id.RecordID) ([]*Entry, error) {
	return p.store.ListByRecord(ctx, recordID)
}

// Recent returns a page of the global history, newest first. The limit is
// clamped to the configured cap; non-positive limits get the cap.
func (p *Publisher) Recent(ctx context.Context, limit, offset int) ([]*Entry, error) {
	if limit <= 0 || limit > p.pageLimit {
		limit = p.pageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return p.store.ListRecent(ctx, limit, offset)
}
