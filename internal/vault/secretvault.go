package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rmiah209/mamba-password-manager/internal/locker"
	"github.com/rmiah209/mamba-password-manager/krypto"
)

// Entry is one decrypted secret as presented to callers.
type Entry struct {
	Website  string `json:"website"`
	Password string `json:"password"`
}

// SecretVault owns secret rows keyed by (account identity, website).
// Payloads are sealed under the account's key; the AAD binds each blob
// to its account and label so ciphertext cannot be replayed across
// rows.
type SecretVault struct {
	db    *sql.DB
	keys  *KeyVault
	locks *locker.Keyed
}

// NewSecretVault binds a SecretVault to an open vault database and its
// KeyVault. The locks argument must be shared with the KeyVault.
func NewSecretVault(db *sql.DB, keys *KeyVault, locks *locker.Keyed) *SecretVault {
	return &SecretVault{db: db, keys: keys, locks: locks}
}

// sealAAD binds a ciphertext to its owning account and label.
func sealAAD(accountID, website string) []byte {
	return []byte(accountID + "\x00" + website)
}

// Add seals secret under the account's key and inserts the row. Empty
// inputs and an already-present website report false with a nil error:
// both are expected outcomes, not failures.
func (v *SecretVault) Add(ctx context.Context, accountID, website, secret string) (bool, error) {
	if website == "" || secret == "" {
		return false, nil
	}

	v.locks.Lock(accountID)
	defer v.locks.Unlock(accountID)

	exists, err := v.websiteExists(ctx, accountID, website)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	key, err := v.keys.KeyFor(ctx, accountID)
	if err != nil {
		return false, err
	}
	defer krypto.Wipe(key)

	blob, err := krypto.Seal(key, []byte(secret), sealAAD(accountID, website))
	if err != nil {
		return false, fmt.Errorf("seal secret: %w", err)
	}

	if _, err := v.db.ExecContext(ctx,
		`INSERT INTO secrets (account_id, website, encrypted_pass) VALUES (?, ?, ?)`,
		accountID, website, blob,
	); err != nil {
		return false, fmt.Errorf("insert secret: %w", err)
	}
	return true, nil
}

// View opens every stored payload for the account. Any authentication
// failure aborts the whole listing with ErrIntegrity: partial results
// would hide key or data corruption. Order is stable per call (by
// website).
func (v *SecretVault) View(ctx context.Context, accountID string) ([]Entry, error) {
	key, err := v.keys.KeyFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer krypto.Wipe(key)

	rows, err := v.db.QueryContext(ctx,
		`SELECT website, encrypted_pass FROM secrets WHERE account_id = ? ORDER BY website`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select secrets: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var website string
		var blob []byte
		if err := rows.Scan(&website, &blob); err != nil {
			return nil, fmt.Errorf("scan secret row: %w", err)
		}

		plain, err := krypto.Open(key, blob, sealAAD(accountID, website))
		if err != nil {
			return nil, fmt.Errorf("open secret for %q: %w", website, err)
		}
		out = append(out, Entry{Website: website, Password: string(plain)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secret rows: %w", err)
	}
	return out, nil
}

// Update reseals the secret for website in place. Reports false when
// the website is absent or the new secret is empty.
func (v *SecretVault) Update(ctx context.Context, accountID, website, newSecret string) (bool, error) {
	if newSecret == "" {
		return false, nil
	}

	v.locks.Lock(accountID)
	defer v.locks.Unlock(accountID)

	exists, err := v.websiteExists(ctx, accountID, website)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	key, err := v.keys.KeyFor(ctx, accountID)
	if err != nil {
		return false, err
	}
	defer krypto.Wipe(key)

	blob, err := krypto.Seal(key, []byte(newSecret), sealAAD(accountID, website))
	if err != nil {
		return false, fmt.Errorf("seal secret: %w", err)
	}

	if _, err := v.db.ExecContext(ctx,
		`UPDATE secrets SET encrypted_pass = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE account_id = ? AND website = ?`,
		blob, accountID, website,
	); err != nil {
		return false, fmt.Errorf("update secret: %w", err)
	}
	return true, nil
}

// Delete removes the row for website. Reports false when absent.
func (v *SecretVault) Delete(ctx context.Context, accountID, website string) (bool, error) {
	v.locks.Lock(accountID)
	defer v.locks.Unlock(accountID)

	res, err := v.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE account_id = ? AND website = ?`,
		accountID, website,
	)
	if err != nil {
		return false, fmt.Errorf("delete secret: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return n > 0, nil
}

// Export materializes View as a cleartext JSON file at path. This is
// an explicit, user-requested decrypt-to-disk operation. An empty
// vault writes nothing and reports false.
func (v *SecretVault) Export(ctx context.Context, accountID, path string) (bool, error) {
	entries, err := v.View(ctx, accountID)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("encode export: %w", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeAccount removes every secret row for the account. Only the
// account-deletion cascade calls this.
func (v *SecretVault) PurgeAccount(ctx context.Context, accountID string) error {
	v.locks.Lock(accountID)
	defer v.locks.Unlock(accountID)

	if _, err := v.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE account_id = ?`, accountID,
	); err != nil {
		return fmt.Errorf("purge secrets: %w", err)
	}
	return nil
}

func (v *SecretVault) websiteExists(ctx context.Context, accountID, website string) (bool, error) {
	var one int
	err := v.db.QueryRowContext(ctx,
		`SELECT 1 FROM secrets WHERE account_id = ? AND website = ?`,
		accountID, website,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check website: %w", err)
	}
	return true, nil
}

// writeFileAtomic writes data with restrictive permissions via a temp
// file and rename, so a crash never leaves a half-written export.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "export-*.json")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp export: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}
