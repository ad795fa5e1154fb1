package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	domain "tokenauth/backend/internal/domain/auth"
	"tokenauth/backend/internal/usecase/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func minCost() options {
	return options{cost: bcrypt.MinCost}
}

func TestRunPrintsHash(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader("secret\n"), &out, minCost()))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
}

func TestRunWithoutTrailingNewline(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader("pa55 word"), &out, minCost()))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out.String())), []byte("pa55 word")))
}

func TestRunRejectsEmpty(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader("\n"), &out, minCost())
	assert.ErrorIs(t, err, credential.ErrPasswordRequired)
	assert.Empty(t, out.String())
}

func TestRunPrintsRecord(t *testing.T) {
	opts := minCost()
	opts.username = "alice"
	opts.fullName = "Alice Wonderson"
	opts.email = "Alice@Example.com"
	opts.disabled = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader("secret2\n"), &out, opts))

	var rec recordOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "Alice Wonderson", rec.FullName)
	assert.Equal(t, "alice@example.com", rec.Email)
	assert.True(t, rec.Disabled)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte("secret2")))
}

func TestRunSeedsRecord(t *testing.T) {
	var seeded []domain.CredentialRecord
	opts := minCost()
	opts.username = "bob"
	opts.seed = func(_ context.Context, rec domain.CredentialRecord) (int64, error) {
		seeded = append(seeded, rec)
		return 1, nil
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader("hunter2\n"), &out, opts))
	assert.Equal(t, "inserted bob\n", out.String())
	require.Len(t, seeded, 1)
	assert.Equal(t, "bob", seeded[0].Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(seeded[0].PasswordHash), []byte("hunter2")))

	opts.seed = func(context.Context, domain.CredentialRecord) (int64, error) { return 0, nil }
	out.Reset()
	require.NoError(t, run(context.Background(), strings.NewReader("hunter2\n"), &out, opts))
	assert.Equal(t, "bob already exists\n", out.String())

	opts.seed = func(context.Context, domain.CredentialRecord) (int64, error) { return 0, errors.New("db down") }
	err := run(context.Background(), strings.NewReader("hunter2\n"), &out, opts)
	assert.ErrorContains(t, err, "seed credential")
}

func TestRunSeedRequiresUsername(t *testing.T) {
	opts := minCost()
	opts.seed = func(context.Context, domain.CredentialRecord) (int64, error) { return 1, nil }

	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader("secret\n"), &out, opts)
	assert.ErrorContains(t, err, "requires -username")
}

func TestRunRecordRejectsBlankUsername(t *testing.T) {
	opts := minCost()
	opts.username = "   "

	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader("secret\n"), &out, opts)
	assert.ErrorIs(t, err, credential.ErrUsernameRequired)
}
