package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// ConfigRepository is the global key/value config table.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository { return &ConfigRepository{db: db} }

// Get returns the stored value and whether the key exists.
func (r *ConfigRepository) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT COALESCE(value, '') FROM config WHERE key = $1`
	var v string
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (r *ConfigRepository) Put(ctx context.Context, key, value string) error {
	const q = `INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

func (r *ConfigRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM config WHERE key = $1`, key)
	return err
}
