package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reclink/internal/record"
	id "reclink/pkg/domain"
	"reclink/pkg/platform/sentinel"
)

// PostgresStore persists anonymous submissions. The reconciliation core only
// reads pending submissions inside the rolling match window; lifecycle
// transitions belong to the surrounding application.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, sub *record.Submission) error {
	query := `
		INSERT INTO submissions (
			id, type, content, contact_email, submitted_by, location, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
	`
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		sub.Type,
		sub.Content,
		sub.ContactEmail,
		sub.SubmittedBy,
		sub.Location,
		string(sub.Status),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, subID id.SubmissionID) (*record.Submission, error) {
	query := selectColumns + ` WHERE id = $1`

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, uuid.UUID(subID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListPendingSince(ctx context.Context, cutoff time.Time) ([]*record.Submission, error) {
	query := selectColumns + ` WHERE status = 'pending' AND created_at >= $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	var out []*record.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

const selectColumns = `
	SELECT id, type, content, contact_email, submitted_by, location, status, created_at
	FROM submissions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*record.Submission, error) {
	var (
		sub       record.Submission
		subID     uuid.UUID
		email     sql.NullString
		submitter sql.NullString
		location  sql.NullString
		status    string
	)

	err := row.Scan(
		&subID,
		&sub.Type,
		&sub.Content,
		&email,
		&submitter,
		&location,
		&status,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.ID = id.SubmissionID(subID)
	sub.ContactEmail = email.String
	sub.SubmittedBy = submitter.String
	sub.Location = location.String
	sub.Status = record.SubmissionStatus(status)

	return &sub, nil
}
