package auth_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	domain "tokenauth/backend/internal/domain/auth"
	"tokenauth/backend/internal/infrastructure/memory"
	"tokenauth/backend/internal/infrastructure/token"
	authusecase "tokenauth/backend/internal/usecase/auth"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *authusecase.Service
	now     *time.Time
	records *memory.CredentialRepository
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newFixture(t *testing.T, records []domain.CredentialRecord, opts ...authusecase.Option) *fixture {
	t.Helper()
	repo, err := memory.NewCredentialRepository(records)
	require.NoError(t, err)
	now := baseTime
	tokens := token.NewJWTManager("test-secret", "tokenauth").WithClock(func() time.Time { return now })
	return &fixture{
		svc:     authusecase.NewService(repo, tokens, quietLogger(), append([]authusecase.Option{authusecase.WithDummyCost(bcrypt.MinCost)}, opts...)...),
		now:     &now,
		records: repo,
	}
}

func testRecords(t *testing.T) []domain.CredentialRecord {
	return []domain.CredentialRecord{
		{Username: "bob", FullName: "Bob", Email: "bob@example.com", PasswordHash: mustHash(t, "hunter2")},
		{Username: "carol", FullName: "Carol", Email: "carol@example.com", PasswordHash: mustHash(t, "pa55word"), Disabled: true},
	}
}

func TestAuthenticateDefaultTable(t *testing.T) {
	f := newFixture(t, memory.DefaultRecords())
	ctx := context.Background()

	identity, err := f.svc.Authenticate(ctx, "johndoe", "secret")
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{
		Username: "johndoe",
		FullName: "John Doe",
		Email:    "johndoe@example.com",
	}, identity)

	_, wrongErr := f.svc.Authenticate(ctx, "johndoe", "wrong")
	_, ghostErr := f.svc.Authenticate(ctx, "ghost", "anything")
	assert.ErrorIs(t, wrongErr, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, ghostErr, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongErr, ghostErr)
}

func TestIdentityHasNoPasswordHashField(t *testing.T) {
	_, ok := reflect.TypeOf(domain.Identity{}).FieldByName("PasswordHash")
	assert.False(t, ok)
}

func TestAuthenticateRejectsBadInput(t *testing.T) {
	f := newFixture(t, testRecords(t))
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty password", "bob", ""},
		{"empty username", "", "hunter2"},
		{"wrong case", "Bob", "hunter2"},
		{"wrong password", "bob", "hunter3"},
		{"unknown user", "dave", "hunter2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := f.svc.Authenticate(ctx, tc.username, tc.password)
			assert.Nil(t, identity)
			assert.Same(t, domain.ErrInvalidCredentials, err)
		})
	}
}

func TestAuthenticateDisabledStillAuthenticates(t *testing.T) {
	f := newFixture(t, testRecords(t))

	identity, err := f.svc.Authenticate(context.Background(), "carol", "pa55word")
	require.NoError(t, err)
	assert.True(t, identity.Disabled)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	f := newFixture(t, testRecords(t))
	ctx := context.Background()

	identity, err := f.svc.Authenticate(ctx, "bob", "hunter2")
	require.NoError(t, err)

	tok, err := f.svc.IssueToken(identity, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(10*time.Minute)))

	for _, offset := range []time.Duration{0, time.Minute, 10*time.Minute - time.Second} {
		*f.now = baseTime.Add(offset)
		got, err := f.svc.VerifyToken(ctx, tok.AccessToken)
		require.NoError(t, err, offset)
		assert.Equal(t, identity, got)
	}

	*f.now = baseTime.Add(10 * time.Minute)
	_, err = f.svc.VerifyToken(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifySucceedsUntilTTLWhenIssuedMidSecond(t *testing.T) {
	f := newFixture(t, testRecords(t))
	ctx := context.Background()

	issued := baseTime.Add(700 * time.Millisecond)
	*f.now = issued
	identity, err := f.svc.Authenticate(ctx, "bob", "hunter2")
	require.NoError(t, err)
	tok, err := f.svc.IssueToken(identity, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, tok.ExpiresAt.Before(issued.Add(10*time.Minute)))

	*f.now = baseTime.Add(10*time.Minute + 500*time.Millisecond)
	_, err = f.svc.VerifyToken(ctx, tok.AccessToken)
	require.NoError(t, err)

	*f.now = tok.ExpiresAt
	_, err = f.svc.VerifyToken(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestIssueTokenDefaultTTL(t *testing.T) {
	f := newFixture(t, testRecords(t))

	tok, err := f.svc.IssueToken(&domain.Identity{Username: "bob"}, 0)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(authusecase.DefaultTokenTTL)))

	f2 := newFixture(t, testRecords(t), authusecase.WithDefaultTTL(time.Hour))
	tok, err = f2.svc.IssueToken(&domain.Identity{Username: "bob"}, -time.Second)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(time.Hour)))

	_, err = f.svc.IssueToken(nil, time.Minute)
	assert.Error(t, err)
}

func TestVerifyTokenFailureKinds(t *testing.T) {
	f := newFixture(t, testRecords(t))
	ctx := context.Background()

	disabled, err := f.svc.IssueToken(&domain.Identity{Username: "carol"}, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(ctx, disabled.AccessToken)
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)

	ghost, err := f.svc.IssueToken(&domain.Identity{Username: "ghost"}, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(ctx, ghost.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnknownSubject)

	_, err = f.svc.VerifyToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	valid, err := f.svc.IssueToken(&domain.Identity{Username: "bob"}, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(ctx, valid.AccessToken+"x")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDisabledAliceScenario(t *testing.T) {
	f := newFixture(t, memory.DefaultRecords())
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, domain.Credentials{Username: "alice", Password: "secret2"})
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestVerifyTokenOtherKey(t *testing.T) {
	f := newFixture(t, testRecords(t))
	other := token.NewJWTManager("other-secret", "tokenauth")
	signed, _, err := other.Generate("bob", time.Hour)
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(context.Background(), signed)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

type failingRepo struct{}

func (failingRepo) GetByUsername(context.Context, string) (*domain.CredentialRecord, error) {
	return nil, errors.New("connection refused")
}

func TestStoreErrorsAreNotAuthFailures(t *testing.T) {
	tokens := token.NewJWTManager("test-secret", "")
	svc := authusecase.NewService(failingRepo{}, tokens, quietLogger())

	_, err := svc.Authenticate(context.Background(), "bob", "hunter2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	signed, _, err := tokens.Generate("bob", time.Minute)
	require.NoError(t, err)
	_, err = svc.VerifyToken(context.Background(), signed)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnknownSubject)
}

type recordingTracker struct {
	mu       sync.Mutex
	failures map[string]int
	resets   []string
	limit    int
}

func (r *recordingTracker) Check(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures[username] >= r.limit {
		return domain.ErrLoginLocked
	}
	return nil
}

func (r *recordingTracker) RecordFailure(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[username]++
	return nil
}

func (r *recordingTracker) Reset(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, username)
	r.resets = append(r.resets, username)
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	login  map[string]int
	verify map[string]int
}

func (c *countingRecorder) RecordLogin(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.login[outcome]++
}

func (c *countingRecorder) RecordVerify(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verify[outcome]++
}

func TestLoginLockoutAndOutcomes(t *testing.T) {
	tracker := &recordingTracker{failures: map[string]int{}, limit: 2}
	recorder := &countingRecorder{login: map[string]int{}, verify: map[string]int{}}
	f := newFixture(t, testRecords(t), authusecase.WithAttemptTracker(tracker), authusecase.WithRecorder(recorder))
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, domain.Credentials{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, tracker.resets)

	_, err = f.svc.VerifyToken(ctx, tok.AccessToken)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.Login(ctx, domain.Credentials{Username: "bob", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
	_, err = f.svc.Login(ctx, domain.Credentials{Username: "bob", Password: "hunter2"})
	assert.ErrorIs(t, err, domain.ErrLoginLocked)

	assert.Equal(t, map[string]int{"success": 1, "invalid_credentials": 2, "locked": 1}, recorder.login)
	assert.Equal(t, map[string]int{"success": 1}, recorder.verify)
}
