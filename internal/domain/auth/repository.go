package auth

import "context"

// CredentialRepository looks up credential records by username.
// Implementations return ErrCredentialNotFound for unknown usernames.
type CredentialRepository interface {
	GetByUsername(ctx context.Context, username string) (*CredentialRecord, error)
}

// AttemptTracker counts failed logins per username.
type AttemptTracker interface {
	Check(ctx context.Context, username string) error
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}
