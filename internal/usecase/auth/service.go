package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "tokenauth/backend/internal/domain/auth"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL applies when IssueToken is called without a positive ttl.
const DefaultTokenTTL = 30 * time.Minute

const dummyPassword = "tokenauth-unknown-user"

// OutcomeRecorder receives one outcome label per login and per token verification.
type OutcomeRecorder interface {
	RecordLogin(outcome string)
	RecordVerify(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(string)  {}
func (noopRecorder) RecordVerify(string) {}

type noopTracker struct{}

func (noopTracker) Check(context.Context, string) error         { return nil }
func (noopTracker) RecordFailure(context.Context, string) error { return nil }
func (noopTracker) Reset(context.Context, string) error         { return nil }

// Option customises a Service.
type Option func(*Service)

// WithDefaultTTL overrides DefaultTokenTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithAttemptTracker enables failed-login lockout.
func WithAttemptTracker(t domain.AttemptTracker) Option {
	return func(s *Service) {
		if t != nil {
			s.attempts = t
		}
	}
}

// WithDummyCost sets the bcrypt cost of the hash compared for unknown usernames.
// It must match the cost of the stored hashes or response times reveal which
// usernames exist.
func WithDummyCost(cost int) Option {
	return func(s *Service) {
		s.dummyCost = cost
	}
}

// WithRecorder reports outcomes to a metrics collector.
func WithRecorder(r OutcomeRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Service authenticates credentials, issues tokens and resolves bearer tokens back to identities.
type Service struct {
	credentials domain.CredentialRepository
	tokens      TokenManager
	attempts    domain.AttemptTracker
	recorder    OutcomeRecorder
	logger      logrus.FieldLogger
	defaultTTL  time.Duration
	dummyCost   int
	dummyHash   []byte
}

// NewService constructs an auth service.
func NewService(credentials domain.CredentialRepository, tokens TokenManager, logger logrus.FieldLogger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		credentials: credentials,
		tokens:      tokens,
		attempts:    noopTracker{},
		recorder:    noopRecorder{},
		logger:      logger.WithField("component", "auth"),
		defaultTTL:  DefaultTokenTTL,
		dummyCost:   domain.DefaultHashCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash = newDummyHash(s.dummyCost)
	return s
}

// newDummyHash hashes a throwaway password so unknown usernames pay for a
// bcrypt comparison at the same cost as known ones.
func newDummyHash(cost int) []byte {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = domain.DefaultHashCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return hash
}

// Authenticate checks a username/password pair and returns the matching identity.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.Identity, error) {
	if username == "" || password == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}

	record, err := s.credentials.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return record.Identity(), nil
}

// IssueToken signs a token for the identity valid for ttl, or the default ttl when ttl <= 0.
func (s *Service) IssueToken(identity *domain.Identity, ttl time.Duration) (*domain.Token, error) {
	if identity == nil || identity.Username == "" {
		return nil, errors.New("identity is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	signed, expiresAt, err := s.tokens.Generate(identity.Username, ttl)
	if err != nil {
		return nil, err
	}
	return &domain.Token{
		AccessToken: signed,
		TokenType:   domain.TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}

// Login authenticates the credentials and issues a token with the default ttl.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (*domain.Token, error) {
	log := s.logger.WithField("username", creds.Username)

	if err := s.attempts.Check(ctx, creds.Username); err != nil {
		if errors.Is(err, domain.ErrLoginLocked) {
			s.recorder.RecordLogin("locked")
			log.Warn("login rejected: locked out")
			return nil, err
		}
		s.recorder.RecordLogin("error")
		return nil, err
	}

	identity, err := s.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recorder.RecordLogin("invalid_credentials")
			log.Warn("login rejected: invalid credentials")
			if terr := s.attempts.RecordFailure(ctx, creds.Username); terr != nil {
				log.WithError(terr).Error("recording failed login")
			}
			return nil, err
		}
		s.recorder.RecordLogin("error")
		log.WithError(err).Error("login failed")
		return nil, err
	}

	if err := s.attempts.Reset(ctx, creds.Username); err != nil {
		log.WithError(err).Error("resetting failed logins")
	}

	token, err := s.IssueToken(identity, 0)
	if err != nil {
		s.recorder.RecordLogin("error")
		log.WithError(err).Error("issuing token")
		return nil, err
	}
	s.recorder.RecordLogin("success")
	log.Info("token issued")
	return token, nil
}

// VerifyToken validates a bearer token and returns the active identity behind it.
func (s *Service) VerifyToken(ctx context.Context, token string) (*domain.Identity, error) {
	identity, err := s.verify(ctx, token)
	outcome := verifyOutcome(err)
	s.recorder.RecordVerify(outcome)
	if err != nil {
		entry := s.logger.WithField("reason", outcome)
		if identity != nil {
			entry = entry.WithField("username", identity.Username)
		}
		if outcome == "error" {
			entry.WithError(err).Error("token verification failed")
		} else {
			entry.WithError(err).Warn("token rejected")
		}
		return nil, err
	}
	return identity, nil
}

func (s *Service) verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidToken)
	}

	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	record, err := s.credentials.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return &domain.Identity{Username: subject}, domain.ErrUnknownSubject
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	identity := record.Identity()
	if identity.Disabled {
		return identity, domain.ErrAccountDisabled
	}
	return identity, nil
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, domain.ErrAccountDisabled):
		return "disabled"
	default:
		return "error"
	}
}
