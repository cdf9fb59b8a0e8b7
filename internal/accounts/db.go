package accounts

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config describes how the accounts database should be opened.
type Config struct {
	// FilePath points to the SQLite database file.
	FilePath string
}

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id    TEXT    NOT NULL UNIQUE,
	username      TEXT    NOT NULL UNIQUE,
	phone         TEXT    NOT NULL UNIQUE,
	password_hash TEXT    NOT NULL,
	login_attempts INTEGER NOT NULL DEFAULT 0,
	last_attempt  INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Open creates (if needed) and opens the SQLite database holding
// account rows. It returns a live connection that the caller must Close.
func Open(cfg Config) (*sql.DB, error) {
	dbPath := cfg.FilePath
	if dbPath == "" {
		return nil, errors.New("accounts database path is required")
	}

	if err := ensureDirectory(dbPath); err != nil {
		return nil, fmt.Errorf("create accounts directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open accounts database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping accounts database: %w", err)
	}

	if _, err := db.Exec(createAccountsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure accounts table: %w", err)
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

// ensurePerm0600 restricts the database file to its owner on Unix.
func ensurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chmod accounts database: %w", err)
	}
	return nil
}
