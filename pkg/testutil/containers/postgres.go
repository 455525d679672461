//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("reclink_test"),
		tcpostgres.WithUsername("reclink"),
		tcpostgres.WithPassword("reclink"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}
	if err := pc.applySchema(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: cleanup is handled by the singleton Manager; Ryuk reaps the
	// container when the test process exits.

	return pc
}

// TruncateTables removes all rows from the given tables. Use between tests to
// ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	_, err := p.DB.ExecContext(ctx, query)
	return err
}

func (p *PostgresContainer) applySchema(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL,
	full_name  TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_identities_email ON identities (email);

CREATE TABLE IF NOT EXISTS claimable_records (
	id               UUID PRIMARY KEY,
	kind             TEXT NOT NULL,
	name             TEXT NOT NULL,
	contact_email    TEXT NOT NULL DEFAULT '',
	contact_phone    TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	owner_id         UUID NULL,
	match_confidence INT NULL,
	skills           TEXT[] NOT NULL DEFAULT '{}',
	interests        TEXT[] NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_claimable_records_owner ON claimable_records (owner_id);

CREATE TABLE IF NOT EXISTS submissions (
	id            UUID PRIMARY KEY,
	type          TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	submitted_by  TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_submissions_pending ON submissions (status, created_at);

CREATE TABLE IF NOT EXISTS claim_audit_entries (
	id             UUID PRIMARY KEY,
	record_id      UUID NOT NULL,
	action         TEXT NOT NULL,
	claimed_by     UUID NOT NULL,
	method         TEXT NOT NULL,
	admin_assisted BOOLEAN NOT NULL DEFAULT FALSE,
	admin_id       UUID NULL,
	claimed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	notes          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_claim_audit_record ON claim_audit_entries (record_id, claimed_at DESC);
CREATE INDEX IF NOT EXISTS idx_claim_audit_recent ON claim_audit_entries (claimed_at DESC);
`
