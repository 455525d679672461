package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reclink/internal/record"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
	txcontext "reclink/pkg/platform/tx"
)

// PostgresStore persists claimable records. Owner transitions use conditional
// UPDATEs so the database provides the compare-and-swap guarantee; a lost
// race surfaces as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, rec *record.Claimable) error {
	query := `
		INSERT INTO claimable_records (
			id, kind, name, contact_email, contact_phone, location,
			owner_id, match_confidence, skills, interests, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			location = EXCLUDED.location,
			owner_id = EXCLUDED.owner_id,
			match_confidence = EXCLUDED.match_confidence,
			skills = EXCLUDED.skills,
			interests = EXCLUDED.interests,
			updated_at = NOW()
	`

	var owner *uuid.UUID
	if rec.OwnerID != nil {
		u := uuid.UUID(*rec.OwnerID)
		owner = &u
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		string(rec.Kind),
		rec.Name,
		rec.ContactEmail,
		rec.ContactPhone,
		rec.Location,
		owner,
		rec.MatchConfidence,
		pq.Array(rec.Skills),
		pq.Array(rec.Interests),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*record.Claimable, error) {
	query := selectColumns + ` WHERE id = $1`

	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(recordID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListUnclaimed(ctx context.Context) ([]*record.Claimable, error) {
	query := selectColumns + ` WHERE owner_id IS NULL ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unclaimed records: %w", err)
	}
	defer rows.Close()

	var out []*record.Claimable
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ClaimOwner performs the null-to-owner transition as a single conditional
// UPDATE and clears stale match metadata in the same statement.
func (s *PostgresStore) ClaimOwner(ctx context.Context, recordID id.RecordID, identityID id.IdentityID) error {
	query := `
		UPDATE claimable_records
		SET owner_id = $2, match_confidence = NULL, updated_at = NOW()
		WHERE id = $1 AND owner_id IS NULL
	`
	return s.conditionalUpdate(ctx, recordID, query, uuid.UUID(recordID), uuid.UUID(identityID))
}

// ReleaseOwner clears the owner link iff the expected identity still holds it.
func (s *PostgresStore) ReleaseOwner(ctx context.Context, recordID id.RecordID, expected id.IdentityID) error {
	query := `
		UPDATE claimable_records
		SET owner_id = NULL, match_confidence = NULL, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`
	return s.conditionalUpdate(ctx, recordID, query, uuid.UUID(recordID), uuid.UUID(expected))
}

// ReassignOwner moves ownership between identities in one conditional UPDATE.
func (s *PostgresStore) ReassignOwner(ctx context.Context, recordID id.RecordID, from, to id.IdentityID) error {
	query := `
		UPDATE claimable_records
		SET owner_id = $3, match_confidence = NULL, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`
	return s.conditionalUpdate(ctx, recordID, query, uuid.UUID(recordID), uuid.UUID(from), uuid.UUID(to))
}

// conditionalUpdate runs one guarded UPDATE and translates "zero rows" into
// either not-found or a lost race, depending on whether the record exists.
func (s *PostgresStore) conditionalUpdate(ctx context.Context, recordID id.RecordID, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record owner: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM claimable_records WHERE id = $1)`, uuid.UUID(recordID),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check record existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

const selectColumns = `
	SELECT id, kind, name, contact_email, contact_phone, location,
	       owner_id, match_confidence, skills, interests, created_at, updated_at
	FROM claimable_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.Claimable, error) {
	var (
		rec        record.Claimable
		recID      uuid.UUID
		kind       string
		email      sql.NullString
		phone      sql.NullString
		location   sql.NullString
		owner      *uuid.UUID
		confidence sql.NullInt64
		skills     pq.StringArray
		interests  pq.StringArray
	)

	err := row.Scan(
		&recID,
		&kind,
		&rec.Name,
		&email,
		&phone,
		&location,
		&owner,
		&confidence,
		&skills,
		&interests,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ID = id.RecordID(recID)
	rec.Kind = record.Kind(kind)
	rec.ContactEmail = email.String
	rec.ContactPhone = phone.String
	rec.Location = location.String
	if owner != nil {
		o := id.IdentityID(*owner)
		rec.OwnerID = &o
	}
	if confidence.Valid {
		c := int(confidence.Int64)
		rec.MatchConfidence = &c
	}
	rec.Skills = []string(skills)
	rec.Interests = []string(interests)

	return &rec, nil
}
