package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migrate creates the three tables and applies additive column migrations.
// Columns added over the system's lifetime are appended to addColumns; the
// duplicate-column error on re-run is expected and ignored, so old data
// survives upgrades.
func Migrate(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id     TEXT PRIMARY KEY,
			user_state  TEXT NOT NULL DEFAULT 'new',
			is_blocked  BOOLEAN NOT NULL DEFAULT FALSE,
			is_muted    BOOLEAN NOT NULL DEFAULT FALSE,
			block_count INTEGER NOT NULL DEFAULT 0,
			thread_id   TEXT,
			profile_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			user_id    TEXT NOT NULL,
			message_id TEXT NOT NULL,
			text       TEXT,
			date       BIGINT,
			PRIMARY KEY (user_id, message_id)
		)`,
	}
	for _, q := range tables {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	addColumns := []string{
		`ALTER TABLE users ADD COLUMN is_muted BOOLEAN NOT NULL DEFAULT FALSE`,
		`ALTER TABLE users ADD COLUMN info_card_message_id TEXT`,
		`ALTER TABLE users ADD COLUMN block_log_message_id TEXT`,
		`ALTER TABLE users ADD COLUMN profile_log_message_id TEXT`,
	}
	for _, q := range addColumns {
		if _, err := db.ExecContext(ctx, q); err != nil {
			// Column already exists on all but the first run.
			log.Debug().Err(err).Msg("additive migration skipped")
		}
	}

	// Reverse lookup thread -> user must be unique.
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_thread_id_uq ON users (thread_id) WHERE thread_id IS NOT NULL`); err != nil {
		return fmt.Errorf("create thread index: %w", err)
	}
	return nil
}
