// Package config handles runtime configuration for the vault:
// defaults, then environment overrides. Collaborator credentials
// (the SMS channel) are only ever supplied here, never embedded in
// code.
package config

import (
	"os"
	"path/filepath"
)

// Config holds runtime settings for the vault process.
//
// Fields:
//   - AccountsDBPath / VaultDBPath: SQLite files for the two stores.
//     They are logically separate even when co-located in one directory.
//   - ExportDir: destination directory for cleartext JSON exports.
//   - TwilioAccountSID / TwilioAuthToken / TwilioFromNumber: SMS
//     channel credentials for one-time codes.
type Config struct {
	AccountsDBPath   string
	VaultDBPath      string
	ExportDir        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// LoadDefaults populates Config with local development defaults.
func (c *Config) LoadDefaults() {
	dataDir := "data"
	c.AccountsDBPath = filepath.Join(dataDir, "accounts.db")
	c.VaultDBPath = filepath.Join(dataDir, "vault.db")
	c.ExportDir = "."
}

// Load builds a Config by applying defaults and then overlaying
// environment variables.
func Load() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.parseEnv()
	return cfg
}

func (c *Config) parseEnv() {
	setFromEnv(&c.AccountsDBPath, "MAMBA_ACCOUNTS_DB")
	setFromEnv(&c.VaultDBPath, "MAMBA_VAULT_DB")
	setFromEnv(&c.ExportDir, "MAMBA_EXPORT_DIR")
	setFromEnv(&c.TwilioAccountSID, "MAMBA_TWILIO_SID")
	setFromEnv(&c.TwilioAuthToken, "MAMBA_TWILIO_TOKEN")
	setFromEnv(&c.TwilioFromNumber, "MAMBA_TWILIO_FROM")
}

func setFromEnv(target *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*target = v
	}
}

// SMSConfigured reports whether the out-of-band channel has credentials.
func (c *Config) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}
