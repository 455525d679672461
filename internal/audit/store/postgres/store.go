package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"reclink/internal/audit"
	id "reclink/pkg/domain"
	txcontext "reclink/pkg/platform/tx"
)

// Store persists claim history in PostgreSQL. Append joins an enclosing
// transaction when one is carried in the context, which is how the claim
// executor makes the owner mutation and the audit write atomic.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO claim_audit_entries (
			id, record_id, action, claimed_by, method,
			admin_assisted, admin_id, claimed_at, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var adminID *uuid.UUID
	if entry.AdminID != nil {
		u := uuid.UUID(*entry.AdminID)
		adminID = &u
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.RecordID),
		string(entry.Action),
		uuid.UUID(entry.ClaimedBy),
		string(entry.Method),
		entry.AdminAssisted,
		adminID,
		entry.ClaimedAt,
		entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByRecord(ctx context.Context, recordID id.RecordID) ([]*audit.Entry, error) {
	query := `
		SELECT id, record_id, action, claimed_by, method,
		       admin_assisted, admin_id, claimed_at, notes
		FROM claim_audit_entries
		WHERE record_id = $1
		ORDER BY claimed_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]*audit.Entry, error) {
	query := `
		SELECT id, record_id, action, claimed_by, method,
		       admin_assisted, admin_id, claimed_at, notes
		FROM claim_audit_entries
		ORDER BY claimed_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*audit.Entry, error) {
	var entries []*audit.Entry

	for rows.Next() {
		var (
			entry    audit.Entry
			entryID  uuid.UUID
			recordID uuid.UUID
			claimed  uuid.UUID
			action   string
			method   string
			adminID  *uuid.UUID
			notes    sql.NullString
		)

		err := rows.Scan(
			&entryID,
			&recordID,
			&action,
			&claimed,
			&method,
			&entry.AdminAssisted,
			&adminID,
			&entry.ClaimedAt,
			&notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = id.EntryID(entryID)
		entry.RecordID = id.RecordID(recordID)
		entry.Action = audit.Action(action)
		entry.ClaimedBy = id.IdentityID(claimed)
		entry.Method = audit.Method(method)
		if adminID != nil {
			a := id.IdentityID(*adminID)
			entry.AdminID = &a
		}
		if notes.Valid {
			entry.Notes = notes.String
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
