// Package vault owns the encrypted side of the product: one symmetric
// key per account identity and the secret rows sealed under it.
// Components here never see usernames or passwords, only account
// identities handed out by the accounts store.
package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config describes how the vault database should be opened.
type Config struct {
	// FilePath points to the SQLite database file.
	FilePath string
}

const createVaultTables = `
CREATE TABLE IF NOT EXISTS keys (
	account_id TEXT PRIMARY KEY,
	key        BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS secrets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id     TEXT NOT NULL,
	website        TEXT NOT NULL,
	encrypted_pass BLOB NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, website)
);`

// Open creates (if needed) and opens the SQLite database holding keys
// and secrets. It returns a live connection that the caller must Close.
func Open(cfg Config) (*sql.DB, error) {
	dbPath := cfg.FilePath
	if dbPath == "" {
		return nil, errors.New("vault database path is required")
	}

	if err := ensureDirectory(dbPath); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping vault database: %w", err)
	}

	if _, err := db.Exec(createVaultTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure vault tables: %w", err)
	}

	if err := ensurePerm0600(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func ensureDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return errors.New("database path must include a directory")
	}
	return os.MkdirAll(dir, 0o750)
}

func ensurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chmod vault database: %w", err)
	}
	return nil
}
