// Package twofa implements the out-of-band second-factor protocol as
// an explicit two-step exchange: request mints a challenge and sends a
// one-time code to the account's phone contact; confirm trades the
// code for an account-scoped proof. Any input surface (CLI, GUI, test
// harness) can drive it.
package twofa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

// Purpose scopes a challenge to the operation it authorizes.
type Purpose string

const (
	PurposeChangePassword Purpose = "change-password"
	PurposeDeleteAccount  Purpose = "delete-account"
)

// Challenges are single-use and expire; a stale pending code is a
// standing invitation to guess it.
const challengeTTL = 5 * time.Minute

// Sender delivers a one-time code over the out-of-band channel.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Proof is the capability handed out by a successful confirmation. It
// is valid only for the account and purpose it was minted for.
type Proof struct {
	accountID string
	purpose   Purpose
}

// Check verifies the proof covers the given account and purpose.
func (p *Proof) Check(accountID string, purpose Purpose) error {
	if p == nil || p.accountID != accountID || p.purpose != purpose {
		return fmt.Errorf("%w: proof does not cover this operation", errs.ErrSecondFactor)
	}
	return nil
}

// AccountID returns the account the proof is scoped to.
func (p *Proof) AccountID() string { return p.accountID }

type challenge struct {
	accountID string
	code      string
	purpose   Purpose
	expires   time.Time
}

// Issuer creates and resolves pending challenges. Pending state lives
// in memory only; a restart simply voids outstanding codes.
type Issuer struct {
	sender Sender
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]challenge
}

// NewIssuer returns an Issuer delivering codes through sender.
func NewIssuer(sender Sender) *Issuer {
	return &Issuer{
		sender:  sender,
		now:     time.Now,
		pending: make(map[string]challenge),
	}
}

// SetClockUnsafe lets tests substitute the wall clock.
func (i *Issuer) SetClockUnsafe(now func() time.Time) { i.now = now }

// Request generates a 6-digit code, sends it to phone, and returns the
// challenge identifier the caller must present on confirmation.
func (i *Issuer) Request(ctx context.Context, accountID, phone string, purpose Purpose) (string, error) {
	code, err := newCode()
	if err != nil {
		return "", err
	}

	if err := i.sender.SendCode(ctx, phone, code); err != nil {
		return "", fmt.Errorf("%w: send code: %v", errs.ErrService, err)
	}

	id := uuid.NewString()
	i.mu.Lock()
	i.pending[id] = challenge{
		accountID: accountID,
		code:      code,
		purpose:   purpose,
		expires:   i.now().Add(challengeTTL),
	}
	i.mu.Unlock()
	return id, nil
}

// Confirm consumes the challenge and returns an account-scoped proof.
// Unknown, expired, or mismatched codes all fail with ErrSecondFactor;
// the challenge is consumed either way so codes cannot be brute-forced
// by retrying.
func (i *Issuer) Confirm(challengeID, code string) (*Proof, error) {
	i.mu.Lock()
	ch, ok := i.pending[challengeID]
	delete(i.pending, challengeID)
	i.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown challenge", errs.ErrSecondFactor)
	}
	if i.now().After(ch.expires) {
		return nil, fmt.Errorf("%w: code expired", errs.ErrSecondFactor)
	}
	if subtle.ConstantTimeCompare([]byte(ch.code), []byte(code)) != 1 {
		return nil, fmt.Errorf("%w: wrong code", errs.ErrSecondFactor)
	}
	return &Proof{accountID: ch.accountID, purpose: ch.purpose}, nil
}

// newCode returns a 6-digit numeric code in [100000, 999999].
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
