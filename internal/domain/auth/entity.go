package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a login failure. Unknown usernames and wrong
	// passwords both map here.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken means a supplied token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("token invalid")
	// ErrTokenExpired means the token verified but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnknownSubject means the token verified but no credential record backs its subject.
	ErrUnknownSubject = errors.New("unknown token subject")
	// ErrAccountDisabled indicates the identity exists but is disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrCredentialNotFound is returned by repositories for a missing username.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrLoginLocked indicates too many failed logins for a username.
	ErrLoginLocked = errors.New("too many failed login attempts")
)

// TokenTypeBearer is the token_type reported for every issued token.
const TokenTypeBearer = "bearer"

// DefaultHashCost is the bcrypt cost of the built-in table and of newly provisioned hashes.
const DefaultHashCost = 12

// CredentialRecord is the stored identity plus its password hash, keyed by username.
type CredentialRecord struct {
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Disabled     bool
}

// Identity is the caller-facing projection of a CredentialRecord.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Identity projects the record without its password hash.
func (r *CredentialRecord) Identity() *Identity {
	return &Identity{
		Username: r.Username,
		Email:    r.Email,
		FullName: r.FullName,
		Disabled: r.Disabled,
	}
}

// Token is a signed access token as handed back to the client.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Username string
	Password string
}
