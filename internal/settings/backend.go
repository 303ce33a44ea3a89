package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hydroforge/hydroforge/internal/db"
)

// Backend is the persistent key/value storage behind a Store. Values are
// canonical JSON text. Several Stores, possibly in different processes, may
// share one backend.
type Backend interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Snapshot(ctx context.Context) (map[string]string, error)
}

// SQLiteBackend stores settings in the settings table.
type SQLiteBackend struct {
	db *db.DB
}

// NewSQLiteBackend creates a backend over d.
func NewSQLiteBackend(d *db.DB) *SQLiteBackend {
	return &SQLiteBackend{db: d}
}

func (b *SQLiteBackend) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading setting %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, keys ...string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, k); err != nil {
			return fmt.Errorf("deleting setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Snapshot(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
