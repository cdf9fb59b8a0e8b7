// Package accounts owns account rows: registration, authentication
// with lockout, logout, password change, and account deletion. It is
// the only component that ever sees raw passwords; downstream
// components identify the owner solely by account identity.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rmiah209/mamba-password-manager/auth"
	"github.com/rmiah209/mamba-password-manager/internal/errs"
	"github.com/rmiah209/mamba-password-manager/internal/locker"
	"github.com/rmiah209/mamba-password-manager/internal/twofa"
)

const (
	maxLoginAttempts = 3
	lockoutWindow    = 300 * time.Second
)

// Store owns the accounts table. All mutations to one account row are
// serialized through a per-username lock so a lockout check and a
// concurrent reset cannot race into an inconsistent counter.
type Store struct {
	db     *sql.DB
	hasher *auth.Hasher
	locks  *locker.Keyed
	now    func() time.Time
}

// NewStore binds a Store to an open accounts database.
func NewStore(db *sql.DB, hasher *auth.Hasher) *Store {
	return &Store{
		db:     db,
		hasher: hasher,
		locks:  locker.New(),
		now:    time.Now,
	}
}

// SetClockUnsafe lets tests substitute the wall clock.
func (s *Store) SetClockUnsafe(now func() time.Time) { s.now = now }

// Register validates the password policy, enforces username and phone
// uniqueness, and inserts a new account with a freshly minted identity.
// It never transitions an existing account.
func (s *Store) Register(ctx context.Context, username, password, phone string) (string, error) {
	if username == "" || phone == "" {
		return "", fmt.Errorf("%w: username and phone are required", errs.ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", err
	}

	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE username = ? OR phone = ?`,
		username, phone,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("check existing account: %w", err)
	}
	if n > 0 {
		return "", fmt.Errorf("%w: username or phone already registered", errs.ErrConflict)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	accountID := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, username, phone, password_hash, login_attempts, last_attempt)
		 VALUES (?, ?, ?, ?, 0, 0)`,
		accountID, username, phone, digest,
	)
	if err != nil {
		// The COUNT pre-check only guards against races on the same
		// username; a concurrent Register under a different username can
		// still collide on the phone column's UNIQUE index.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("%w: username or phone already registered", errs.ErrConflict)
		}
		return "", fmt.Errorf("insert account: %w", err)
	}
	return accountID, nil
}

// Authenticate verifies the password for username and returns the
// account identity on success. While locked (attempts >= 3 and the
// 300-second cooldown still open) it fails with ErrLocked and performs
// no side effect; the cooldown is recomputed from the stored timestamp
// on every call and does not reset on a locked attempt.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin authenticate: %w", err)
	}
	defer tx.Rollback()

	var (
		accountID   string
		digest      string
		attempts    int
		lastAttempt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, password_hash, login_attempts, last_attempt
		   FROM accounts WHERE username = ?`,
		username,
	).Scan(&accountID, &digest, &attempts, &lastAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no such account", errs.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("select account: %w", err)
	}

	now := s.now()
	if attempts >= maxLoginAttempts && now.Sub(time.Unix(lastAttempt, 0)) < lockoutWindow {
		return "", fmt.Errorf("%w: too many failed attempts", errs.ErrLocked)
	}

	if !s.hasher.Verify(password, digest) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts
			    SET login_attempts = login_attempts + 1, last_attempt = ?, updated_at = CURRENT_TIMESTAMP
			  WHERE username = ?`,
			now.Unix(), username,
		); err != nil {
			return "", fmt.Errorf("record failed attempt: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit failed attempt: %w", err)
		}
		return "", fmt.Errorf("%w: wrong password", errs.ErrInvalidCredentials)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET login_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE username = ?`,
		username,
	); err != nil {
		return "", fmt.Errorf("reset attempts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit authenticate: %w", err)
	}
	return accountID, nil
}

// Logout unconditionally resets the failed-attempt counter and last
// failure timestamp. Idempotent; unknown usernames are a no-op.
func (s *Store) Logout(ctx context.Context, username string) error {
	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET login_attempts = 0, last_attempt = 0, updated_at = CURRENT_TIMESTAMP
		  WHERE username = ?`,
		username,
	)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// VerifyPassword checks credentials without touching the lockout
// counters. The deletion flow uses it before issuing a second factor.
func (s *Store) VerifyPassword(ctx context.Context, username, password string) (string, error) {
	var accountID, digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, password_hash FROM accounts WHERE username = ?`,
		username,
	).Scan(&accountID, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no such account", errs.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("select account: %w", err)
	}
	if !s.hasher.Verify(password, digest) {
		return "", fmt.Errorf("%w: wrong password", errs.ErrInvalidCredentials)
	}
	return accountID, nil
}

// PhoneFor returns the account identity and registered phone contact
// for username, used to address the out-of-band code channel.
func (s *Store) PhoneFor(ctx context.Context, username string) (accountID, phone string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT account_id, phone FROM accounts WHERE username = ?`,
		username,
	).Scan(&accountID, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: no such account", errs.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("select account: %w", err)
	}
	return accountID, phone, nil
}

// ChangePassword replaces the stored digest after checking the
// second-factor proof. The new password passes the same composition
// policy as registration.
func (s *Store) ChangePassword(ctx context.Context, username, newPassword string, proof *twofa.Proof) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	accountID, err := s.accountIDFor(ctx, username)
	if err != nil {
		return err
	}
	if err := proof.Check(accountID, twofa.PurposeChangePassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`,
		digest, username,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete hard-deletes the account row after checking the second-factor
// proof. Cascading the delete to the account's key and secrets is the
// caller's responsibility; each component owns its own rows.
func (s *Store) Delete(ctx context.Context, username string, proof *twofa.Proof) error {
	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	accountID, err := s.accountIDFor(ctx, username)
	if err != nil {
		return err
	}
	if err := proof.Check(accountID, twofa.PurposeDeleteAccount); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no such account", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) accountIDFor(ctx context.Context, username string) (string, error) {
	var accountID string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM accounts WHERE username = ?`, username,
	).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no such account", errs.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("select account: %w", err)
	}
	return accountID, nil
}
