package store

import (
	"context"
	"database/sql"
	"errors"
)

// Settings keys.
const (
	keyAlwaysAllow = "permissions.always_allow"
	keySandboxSafe = "sandbox.safe"
)

func (db *DB) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (db *DB) setSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// AlwaysAllow reads the durable allow-all permission flag. Missing means
// false. Implements callflow.SettingsStore.
func (db *DB) AlwaysAllow(ctx context.Context) (bool, error) {
	v, ok, err := db.getSetting(ctx, keyAlwaysAllow)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// SetAlwaysAllow persists the durable allow-all permission flag.
func (db *DB) SetAlwaysAllow(ctx context.Context, allow bool) error {
	return db.setSetting(ctx, keyAlwaysAllow, boolString(allow))
}

// SandboxSafe reads the persisted sandbox safety toggle. Missing means safe.
func (db *DB) SandboxSafe(ctx context.Context) (bool, error) {
	v, ok, err := db.getSetting(ctx, keySandboxSafe)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return v == "true", nil
}

// SetSandboxSafe persists the sandbox safety toggle.
func (db *DB) SetSandboxSafe(ctx context.Context, safe bool) error {
	return db.setSetting(ctx, keySandboxSafe, boolString(safe))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
