package token

import (
	"errors"
	"fmt"
	"time"

	domain "tokenauth/backend/internal/domain/auth"
	usecase "tokenauth/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager issues and validates HS256 JWT tokens.
type JWTManager struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewJWTManager constructs a manager with the provided secret and issuer.
// An empty issuer omits the iss claim and skips its verification.
func NewJWTManager(secret string, issuer string) *JWTManager {
	m := &JWTManager{
		secret:  []byte(secret),
		issuer:  issuer,
		nowFunc: time.Now,
	}
	m.parser = m.newParser()
	return m
}

// WithClock replaces the clock used for iat/exp and for expiry checks.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.nowFunc = now
	m.parser = m.newParser()
	return m
}

// Ensure JWTManager implements the TokenManager interface.
var _ usecase.TokenManager = (*JWTManager)(nil)

func (m *JWTManager) newParser() *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return m.nowFunc() }),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	return jwt.NewParser(options...)
}

// Generate creates a signed JWT whose subject is the username.
func (m *JWTManager) Generate(subject string, ttl time.Duration) (string, time.Time, error) {
	now := m.nowFunc().UTC()
	expiresAt := ceilToSecond(now.Add(ttl))
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ceilToSecond rounds t up to the whole second the exp claim can carry, so a
// token never expires before now+ttl.
func ceilToSecond(t time.Time) time.Time {
	if floor := t.Truncate(time.Second); floor.Before(t) {
		return floor.Add(time.Second)
	}
	return t
}

// Validate parses and validates the token returning its subject when valid.
// Expired tokens with a good signature yield ErrTokenExpired; every other
// failure yields ErrInvalidToken.
func (m *JWTManager) Validate(tokenString string) (string, error) {
	token, err := m.parser.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", domain.ErrInvalidToken)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}
	return claims.Subject, nil
}
