package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "tokenauth/backend/internal/domain/auth"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RowQuerier is the subset of *pgxpool.Pool the repository needs.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialRepository reads credential records from PostgreSQL.
type CredentialRepository struct {
	db RowQuerier
}

// NewCredentialRepository constructs a repository.
func NewCredentialRepository(db RowQuerier) *CredentialRepository {
	return &CredentialRepository{db: db}
}

var _ domain.CredentialRepository = (*CredentialRepository)(nil)

// GetByUsername fetches a record by exact username.
func (r *CredentialRepository) GetByUsername(ctx context.Context, username string) (*domain.CredentialRecord, error) {
	const query = `
SELECT username, full_name, email, password_hash, disabled
FROM credentials WHERE username = $1
`
	row := r.db.QueryRow(ctx, query, username)
	rec, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanCredential(row pgx.Row) (*domain.CredentialRecord, error) {
	var rec domain.CredentialRecord
	err := row.Scan(
		&rec.Username,
		&rec.FullName,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Disabled,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Execer is the subset of *pgxpool.Pool used for writes.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SeedCredentials inserts records that are not present yet and reports how many were added.
func SeedCredentials(ctx context.Context, db Execer, records []domain.CredentialRecord) (int64, error) {
	const query = `
INSERT INTO credentials (username, full_name, email, password_hash, disabled)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO NOTHING
`
	var inserted int64
	for _, rec := range records {
		ct, err := db.Exec(ctx, query,
			rec.Username,
			rec.FullName,
			rec.Email,
			rec.PasswordHash,
			rec.Disabled,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed credential %q: %w", rec.Username, err)
		}
		inserted += ct.RowsAffected()
	}
	return inserted, nil
}
