// Package service exposes high-level vault operations for the CLI and
// other presentation surfaces. It composes the account store, key
// vault, secret vault, second-factor issuer, and breach advisor; all
// collaborators are injected and their lifecycle is owned by the
// process entry point.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rmiah209/mamba-password-manager/auth"
	"github.com/rmiah209/mamba-password-manager/internal/accounts"
	"github.com/rmiah209/mamba-password-manager/internal/errs"
	"github.com/rmiah209/mamba-password-manager/internal/logging"
	"github.com/rmiah209/mamba-password-manager/internal/twofa"
	"github.com/rmiah209/mamba-password-manager/internal/vault"
)

// BreachAdvisor is the advisory breach-intelligence collaborator.
type BreachAdvisor interface {
	LeakCount(ctx context.Context, password string) (int, error)
}

// Service wires the core components together behind one façade.
type Service struct {
	accounts  *accounts.Store
	keys      *vault.KeyVault
	secrets   *vault.SecretVault
	issuer    *twofa.Issuer
	breach    BreachAdvisor
	exportDir string
	log       logging.Logger
}

// New returns a ready Service. breach may be nil when the advisory
// collaborator is unavailable; every breach check then degrades to
// "unknown".
func New(
	accts *accounts.Store,
	keys *vault.KeyVault,
	secrets *vault.SecretVault,
	issuer *twofa.Issuer,
	breach BreachAdvisor,
	exportDir string,
	log logging.Logger,
) *Service {
	return &Service{
		accounts:  accts,
		keys:      keys,
		secrets:   secrets,
		issuer:    issuer,
		breach:    breach,
		exportDir: exportDir,
		log:       log,
	}
}

// RegisterResult reports the outcome of a registration plus the
// advisory signals gathered along the way.
type RegisterResult struct {
	AccountID string
	// LeakCount is -1 when the breach advisor was unavailable.
	LeakCount int
	Strength  int
}

// Register creates the account and reports advisory password signals.
// Breach-advisor failures never block registration.
func (s *Service) Register(ctx context.Context, username, password, phone string) (*RegisterResult, error) {
	accountID, err := s.accounts.Register(ctx, username, password, phone)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account registered", "username", username)

	res := &RegisterResult{AccountID: accountID, LeakCount: -1, Strength: auth.Strength(password)}
	if s.breach != nil {
		if count, err := s.breach.LeakCount(ctx, password); err == nil {
			res.LeakCount = count
		} else {
			s.log.Warn(ctx, "breach check unavailable", "err", err)
		}
	}
	return res, nil
}

// Authenticate verifies credentials and returns the account identity.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	accountID, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, errs.ErrLocked) {
			s.log.Warn(ctx, "login rejected: account locked", "username", username)
		}
		return "", err
	}
	s.log.Info(ctx, "login succeeded", "username", username)
	return accountID, nil
}

// Logout resets the account's lockout counters. Idempotent.
func (s *Service) Logout(ctx context.Context, username string) error {
	return s.accounts.Logout(ctx, username)
}

// BeginPasswordChange sends a one-time code to the account's phone and
// returns the challenge identifier.
func (s *Service) BeginPasswordChange(ctx context.Context, username string) (string, error) {
	accountID, phone, err := s.accounts.PhoneFor(ctx, username)
	if err != nil {
		return "", err
	}
	return s.issuer.Request(ctx, accountID, phone, twofa.PurposeChangePassword)
}

// ConfirmPasswordChange trades the code for a proof and replaces the
// stored digest.
func (s *Service) ConfirmPasswordChange(ctx context.Context, username, challengeID, code, newPassword string) error {
	proof, err := s.issuer.Confirm(challengeID, code)
	if err != nil {
		return err
	}
	if err := s.accounts.ChangePassword(ctx, username, newPassword, proof); err != nil {
		return err
	}
	s.log.Info(ctx, "password changed", "username", username)
	return nil
}

// BeginAccountDelete verifies credentials first, then sends a one-time
// code. The returned challenge must be confirmed before anything is
// deleted.
func (s *Service) BeginAccountDelete(ctx context.Context, username, password string) (string, error) {
	if _, err := s.accounts.VerifyPassword(ctx, username, password); err != nil {
		return "", err
	}
	accountID, phone, err := s.accounts.PhoneFor(ctx, username)
	if err != nil {
		return "", err
	}
	return s.issuer.Request(ctx, accountID, phone, twofa.PurposeDeleteAccount)
}

// ConfirmAccountDelete hard-deletes the account and cascades to its
// key and every secret. Each component owns its rows, so the cascade
// is orchestrated here.
func (s *Service) ConfirmAccountDelete(ctx context.Context, username, challengeID, code string) error {
	proof, err := s.issuer.Confirm(challengeID, code)
	if err != nil {
		return err
	}
	accountID := proof.AccountID()

	if err := s.accounts.Delete(ctx, username, proof); err != nil {
		return err
	}
	if err := s.secrets.PurgeAccount(ctx, accountID); err != nil {
		return err
	}
	if err := s.keys.DeleteKey(ctx, accountID); err != nil {
		return err
	}
	s.log.Info(ctx, "account deleted", "username", username)
	return nil
}

// EnsureKey materializes the account's vault key; created=false means
// it already existed, a no-op rather than an error.
func (s *Service) EnsureKey(ctx context.Context, accountID string) (bool, error) {
	return s.keys.EnsureKey(ctx, accountID)
}

// AddSecret stores a sealed secret for the account.
func (s *Service) AddSecret(ctx context.Context, accountID, website, secret string) (bool, error) {
	return s.secrets.Add(ctx, accountID, website, secret)
}

// ViewSecrets opens every secret for the account.
func (s *Service) ViewSecrets(ctx context.Context, accountID string) ([]vault.Entry, error) {
	entries, err := s.secrets.View(ctx, accountID)
	if err != nil && errors.Is(err, errs.ErrIntegrity) {
		s.log.Error(ctx, "vault integrity failure", "err", err)
	}
	return entries, err
}

// UpdateSecret reseals the secret for website in place.
func (s *Service) UpdateSecret(ctx context.Context, accountID, website, newSecret string) (bool, error) {
	return s.secrets.Update(ctx, accountID, website, newSecret)
}

// DeleteSecret removes the secret for website.
func (s *Service) DeleteSecret(ctx context.Context, accountID, website string) (bool, error) {
	return s.secrets.Delete(ctx, accountID, website)
}

// Export decrypts the account's secrets to
// <username>_passwords.json in the configured export directory. The
// file is cleartext by design: this is an explicit, user-requested
// decrypt-to-disk operation.
func (s *Service) Export(ctx context.Context, username, accountID string) (string, bool, error) {
	path := filepath.Join(s.exportDir, fmt.Sprintf("%s_passwords.json", username))
	ok, err := s.secrets.Export(ctx, accountID, path)
	if err != nil || !ok {
		return "", ok, err
	}
	s.log.Info(ctx, "vault exported", "username", username, "path", path)
	return path, true, nil
}

// CheckBreach returns the advisory leak count for a password.
func (s *Service) CheckBreach(ctx context.Context, password string) (int, error) {
	if s.breach == nil {
		return 0, fmt.Errorf("%w: breach advisor not configured", errs.ErrService)
	}
	return s.breach.LeakCount(ctx, password)
}
