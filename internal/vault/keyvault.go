package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
	"github.com/rmiah209/mamba-password-manager/internal/locker"
	"github.com/rmiah209/mamba-password-manager/krypto"
)

// KeyVault owns the key table: at most one immutable symmetric key per
// account identity, ever.
type KeyVault struct {
	db    *sql.DB
	locks *locker.Keyed
}

// NewKeyVault binds a KeyVault to an open vault database. The locks
// argument must be the same keyed locker the SecretVault uses so key
// creation serializes with secret writes for the same account.
func NewKeyVault(db *sql.DB, locks *locker.Keyed) *KeyVault {
	return &KeyVault{db: db, locks: locks}
}

// EnsureKey materializes the account's key on first call. A key that
// already exists is a no-op, not an error: created reports false and
// storage is left untouched.
func (k *KeyVault) EnsureKey(ctx context.Context, accountID string) (created bool, err error) {
	k.locks.Lock(accountID)
	defer k.locks.Unlock(accountID)

	var one int
	err = k.db.QueryRowContext(ctx,
		`SELECT 1 FROM keys WHERE account_id = ?`, accountID,
	).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("check key: %w", err)
	}

	key, err := krypto.NewKey()
	if err != nil {
		return false, err
	}
	defer krypto.Wipe(key)

	if _, err := k.db.ExecContext(ctx,
		`INSERT INTO keys (account_id, key) VALUES (?, ?)`, accountID, key,
	); err != nil {
		return false, fmt.Errorf("insert key: %w", err)
	}
	return true, nil
}

// KeyFor returns the account's key material. A missing key means the
// caller broke the ordering contract (secret operations before
// EnsureKey) and is reported as ErrNoKey.
func (k *KeyVault) KeyFor(ctx context.Context, accountID string) ([]byte, error) {
	var key []byte
	err := k.db.QueryRowContext(ctx,
		`SELECT key FROM keys WHERE account_id = ?`, accountID,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNoKey, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("select key: %w", err)
	}
	return key, nil
}

// DeleteKey removes the account's key row. Only the account-deletion
// cascade calls this; a key is otherwise immutable for the account's
// lifetime.
func (k *KeyVault) DeleteKey(ctx context.Context, accountID string) error {
	k.locks.Lock(accountID)
	defer k.locks.Unlock(accountID)

	if _, err := k.db.ExecContext(ctx,
		`DELETE FROM keys WHERE account_id = ?`, accountID,
	); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}
