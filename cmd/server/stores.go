package main

import (
	"context"
	"database/sql"
	"time"

	"reclink/internal/audit"
	auditmemory "reclink/internal/audit/store/memory"
	auditpostgres "reclink/internal/audit/store/postgres"
	"reclink/internal/identity"
	"reclink/internal/identity/store/identities"
	"reclink/internal/record"
	"reclink/internal/record/store/records"
	"reclink/internal/record/store/submissions"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/tx"
)

// recordStore is the union of the reader and owner-transition surfaces the
// services need from the record store.
type recordStore interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*record.Claimable, error)
	ListUnclaimed(ctx context.Context) ([]*record.Claimable, error)
	ClaimOwner(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) error
	ReleaseOwner(ctx context.Context, recordID id.RecordID, expected id.IdentityID) error
	ReassignOwner(ctx context.Context, recordID id.RecordID, from, to id.IdentityID) error
}

type submissionStore interface {
	ListPendingSince(ctx context.Context, cutoff time.Time) ([]*record.Submission, error)
}

type identityStore interface {
	FindByID(ctx context.Context, identityID id.IdentityID) (identity.Identity, error)
	SearchByEmail(ctx context.Context, query string, limit int) ([]identity.Identity, error)
}

type stores struct {
	records     recordStore
	submissions submissionStore
	identities  identityStore
	auditStore  audit.Store
	runner      tx.Runner
}

// buildStores selects the persistence tier. With a database every store is
// SQL-backed and transitions run inside real transactions; without one the
// in-memory twins serve local development.
func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			records:     records.New(),
			submissions: submissions.New(),
			identities:  identities.New(),
			auditStore:  auditmemory.New(),
			runner:      tx.NoopRunner{},
		}
	}
	return stores{
		records:     records.NewPostgres(db),
		submissions: submissions.NewPostgres(db),
		identities:  identities.NewPostgres(db),
		auditStore:  auditpostgres.New(db),
		runner:      tx.NewSQLRunner(db),
	}
}
