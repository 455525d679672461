package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reclink/internal/identity"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
)

// PostgresStore reads the identity directory mirrored from the auth provider.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, ident identity.Identity) error {
	query := `
		INSERT INTO identities (id, email, full_name, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(ident.ID), ident.Email, ident.FullName, ident.Phone)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, identityID id.IdentityID) (identity.Identity, error) {
	query := `SELECT id, email, full_name, phone FROM identities WHERE id = $1`

	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, uuid.UUID(identityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Identity{}, sentinel.ErrNotFound
		}
		return identity.Identity{}, fmt.Errorf("find identity: %w", err)
	}
	return ident, nil
}

// SearchByEmail performs the admin panel's free-text partial match on email.
func (s *PostgresStore) SearchByEmail(ctx context.Context, query string, limit int) ([]identity.Identity, error) {
	stmt := `
		SELECT id, email, full_name, phone
		FROM identities
		WHERE email ILIKE '%' || $1 || '%'
		ORDER BY email
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (identity.Identity, error) {
	var (
		ident    identity.Identity
		identID  uuid.UUID
		fullName sql.NullString
		phone    sql.NullString
	)
	if err := row.Scan(&identID, &ident.Email, &fullName, &phone); err != nil {
		return identity.Identity{}, err
	}
	ident.ID = id.IdentityID(identID)
	ident.FullName = fullName.String
	ident.Phone = phone.String
	return ident, nil
}
