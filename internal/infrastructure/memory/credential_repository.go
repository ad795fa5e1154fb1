package memory

import (
	"context"
	"fmt"

	domain "tokenauth/backend/internal/domain/auth"
)

// CredentialRepository serves credential records from a table fixed at construction.
type CredentialRepository struct {
	records map[string]domain.CredentialRecord
}

// NewCredentialRepository copies the given records into a read-only table.
// Duplicate or empty usernames are rejected.
func NewCredentialRepository(records []domain.CredentialRecord) (*CredentialRepository, error) {
	table := make(map[string]domain.CredentialRecord, len(records))
	for _, rec := range records {
		if rec.Username == "" {
			return nil, fmt.Errorf("credential record with empty username")
		}
		if _, exists := table[rec.Username]; exists {
			return nil, fmt.Errorf("duplicate credential record %q", rec.Username)
		}
		table[rec.Username] = rec
	}
	return &CredentialRepository{records: table}, nil
}

// GetByUsername returns a copy of the record so callers cannot mutate the table.
func (r *CredentialRepository) GetByUsername(_ context.Context, username string) (*domain.CredentialRecord, error) {
	rec, ok := r.records[username]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return &rec, nil
}

// Len reports the number of records in the table.
func (r *CredentialRepository) Len() int {
	return len(r.records)
}

// DefaultRecords is the built-in table used when no external store is configured.
// johndoe's password is "secret", alice's is "secret2".
func DefaultRecords() []domain.CredentialRecord {
	return []domain.CredentialRecord{
		{
			Username:     "johndoe",
			FullName:     "John Doe",
			Email:        "johndoe@example.com",
			PasswordHash: "$2b$12$EixZaYVK1fsbw1ZfbX3OXePaWxn96p36WQoeG6Lruj3vjPGga31lW",
		},
		{
			Username:     "alice",
			FullName:     "Alice Wonderson",
			Email:        "alice@example.com",
			PasswordHash: "$2b$12$2Gj0omFAHpL1.jmH7zPLZOs7N42QJZZWmf8CuCkHm5XuAa6hilA/.",
			Disabled:     true,
		},
	}
}
