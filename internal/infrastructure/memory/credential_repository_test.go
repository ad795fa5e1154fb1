package memory

import (
	"context"
	"testing"

	domain "tokenauth/backend/internal/domain/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGetByUsername(t *testing.T) {
	repo, err := NewCredentialRepository(DefaultRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())

	rec, err := repo.GetByUsername(context.Background(), "johndoe")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", rec.FullName)
	assert.False(t, rec.Disabled)

	_, err = repo.GetByUsername(context.Background(), "JohnDoe")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestGetByUsernameReturnsCopy(t *testing.T) {
	repo, err := NewCredentialRepository(DefaultRecords())
	require.NoError(t, err)

	rec, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	rec.Disabled = false

	again, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, again.Disabled)
}

func TestNewCredentialRepositoryRejectsBadTables(t *testing.T) {
	_, err := NewCredentialRepository([]domain.CredentialRecord{{Username: ""}})
	assert.Error(t, err)

	_, err = NewCredentialRepository([]domain.CredentialRecord{{Username: "a"}, {Username: "a"}})
	assert.Error(t, err)
}

func TestDefaultRecordPasswords(t *testing.T) {
	passwords := map[string]string{"johndoe": "secret", "alice": "secret2"}
	for _, rec := range DefaultRecords() {
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(passwords[rec.Username])), rec.Username)
	}
}

func TestDefaultRecordsUseDefaultHashCost(t *testing.T) {
	for _, rec := range DefaultRecords() {
		cost, err := bcrypt.Cost([]byte(rec.PasswordHash))
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultHashCost, cost, rec.Username)
	}
}
