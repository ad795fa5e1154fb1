package auth

import "time"

// TokenManager abstracts token issuance and verification.
type TokenManager interface {
	Generate(subject string, ttl time.Duration) (string, time.Time, error)
	Validate(token string) (string, error)
}
