// Package krypto wraps the authenticated-encryption primitives used to
// seal vault secrets. It composes vetted primitives only.
package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

const (
	// KeySize is the AES-256 key length used for every account key.
	KeySize = 32

	gcmNonceSize = 12
)

// NewKey returns fresh cryptographically random key material.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext using AES-256-GCM and returns a single opaque
// blob: nonce followed by ciphertext+tag. The aad is authenticated but
// not stored; Open must be called with the same aad.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts a blob produced by Seal. Authentication failure is
// reported as errs.ErrIntegrity so callers can distinguish tampering
// from operational errors.
func Open(key, blob, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(blob) <= gcmNonceSize {
		return nil, fmt.Errorf("%w: encrypted blob too short", errs.ErrIntegrity)
	}

	nonce, ciphertext := blob[:gcmNonceSize], blob[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIntegrity, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Wipe overwrites sensitive byte slices in place to reduce their
// lifetime in memory.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
