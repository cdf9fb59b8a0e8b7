package vault_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmiah209/mamba-password-manager/internal/vault"
)

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "vault.db")

	db, err := vault.Open(vault.Config{FilePath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.FileExists(t, dbPath)
}

func TestOpenEnsuresTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vault.db")

	db, err := vault.Open(vault.Config{FilePath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"keys", "secrets"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s", table)
		require.Equal(t, table, name)
	}
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vault.db")

	db, err := vault.Open(vault.Config{FilePath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var busyTimeout int
	require.NoError(t, db.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := vault.Open(vault.Config{})
	require.Error(t, err)
}
