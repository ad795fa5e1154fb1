// Package credential builds credential records ready for a store.
package credential

import (
	"errors"
	"strings"

	domain "tokenauth/backend/internal/domain/auth"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameRequired rejects a blank username.
	ErrUsernameRequired = errors.New("username is required")
	// ErrPasswordRequired rejects an empty password.
	ErrPasswordRequired = errors.New("password is required")
	// ErrPasswordTooLong rejects passwords bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Input describes a credential to provision.
type Input struct {
	Username string
	FullName string
	Email    string
	Password string
	Disabled bool
}

// Provisioner hashes passwords at a fixed bcrypt cost.
type Provisioner struct {
	cost int
}

// NewProvisioner returns a Provisioner. A cost outside bcrypt's range falls back to domain.DefaultHashCost.
func NewProvisioner(cost int) *Provisioner {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = domain.DefaultHashCost
	}
	return &Provisioner{cost: cost}
}

// HashPassword returns the bcrypt hash of password.
func (p *Provisioner) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// NewRecord validates input and returns a record carrying the hashed password.
// The username is kept verbatim since lookups are case-sensitive.
func (p *Provisioner) NewRecord(input Input) (domain.CredentialRecord, error) {
	if strings.TrimSpace(input.Username) == "" {
		return domain.CredentialRecord{}, ErrUsernameRequired
	}
	hash, err := p.HashPassword(input.Password)
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	return domain.CredentialRecord{
		Username:     input.Username,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.TrimSpace(strings.ToLower(input.Email)),
		PasswordHash: hash,
		Disabled:     input.Disabled,
	}, nil
}
