// Package errs defines the sentinel errors shared across the vault.
// Components wrap these with fmt.Errorf("...: %w", ...) and callers
// branch with errors.Is.
package errs

import "errors"

var (
	// ErrValidation indicates malformed input or a policy violation
	// (password composition, empty fields).
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates a uniqueness violation on username, phone,
	// or secret label.
	ErrConflict = errors.New("already exists")

	// ErrNotFound indicates no such account or secret.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials indicates a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLocked indicates the account lockout cooldown is still open.
	ErrLocked = errors.New("account locked")

	// ErrSecondFactor indicates a wrong, expired, or consumed one-time code.
	ErrSecondFactor = errors.New("second factor rejected")

	// ErrIntegrity indicates a decryption/authentication failure. It
	// signals tampering or a key mismatch and must abort the enclosing
	// operation, never be silently swallowed.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrService indicates an external collaborator is unavailable.
	// Advisory callers may choose to proceed without it.
	ErrService = errors.New("external service unavailable")

	// ErrNoKey indicates EnsureKey was never called for the account.
	// This is a precondition violation, not a recoverable user error.
	ErrNoKey = errors.New("no key for account")
)
